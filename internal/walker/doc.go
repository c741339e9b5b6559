// Package walker traverses paginated listings as a lazy pull iterator.
//
// A Walker fetches one page at a time through the fetch scheduler and
// hands items out one by one from Next. Nothing is fetched ahead of
// demand, so a caller that stops early never pays for pages it did not
// consume. Every item passes through a job-wide seen-set before it is
// yielded: listings drift while they are being paged (new submissions
// push older ones across page boundaries, stickied posts repeat), and
// the seen-set guarantees each record identity is yielded at most once
// per job.
//
// Progress is resumable. State captures the continuation cursor and
// counters, SeenSet captures the identities already yielded, and both
// round-trip through JSON so a later run can pick up where a crashed or
// interrupted one stopped.
package walker
