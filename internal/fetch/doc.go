// Package fetch issues rate-governed fetch operations against an abstract
// transport and owns the retry policy.
//
// The Scheduler wraps every transport call with: token acquisition from
// the shared rate gate, a per-call timeout, and an explicit bounded-retry
// loop driven by the typed error classification in this package
// (throttled, transient, permanent, canceled). Throttled failures feed the
// gate's suppression window and retry under exponential backoff with
// jitter; transient failures retry under a separate budget; permanent
// failures and cancellation surface immediately. When a budget runs out
// the last cause is wrapped in an exhausted error so callers can treat it
// as a partial-result condition rather than a hard failure.
package fetch
