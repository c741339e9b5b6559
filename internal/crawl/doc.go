// Package crawl drives a crawl job from listing to final report.
//
// The Controller owns the job lifecycle. It walks the target's post
// listing, fans comment fetching out to a bounded worker pool, builds
// each post's comment forest under the expansion policy, hands finished
// records to the exporter, and assembles the job's CrawlReport.
//
// Partial results are first class: abandoned subtrees, skipped posts,
// and truncated listings degrade the outcome to partial instead of
// failing the job. Cancellation, an unreachable target, or an export
// write failure abort it; output written before the abort is kept.
// Listing progress is checkpointed through the job database so an
// interrupted job can resume where it stopped.
package crawl
