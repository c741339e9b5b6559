package model

import (
	"fmt"
	"time"
)

// Outcome is the final disposition of a crawl job. The three values are
// never collapsed into a single pass/fail bit: partial completion is a
// first-class result.
type Outcome string

const (
	// OutcomeComplete means every requested record was collected and
	// exported in full.
	OutcomeComplete Outcome = "complete"

	// OutcomePartial means the job finished but some comment subtrees
	// were abandoned under the expansion policy, some posts were skipped
	// after retry exhaustion, or the listing ended early.
	OutcomePartial Outcome = "partial"

	// OutcomeAborted means the job stopped before finishing: the target
	// was unreachable, an export write failed, or the run was cancelled.
	// Output written before the abort is preserved.
	OutcomeAborted Outcome = "aborted"
)

// Thread pairs a post with its materialized comment forest.
type Thread struct {
	// Post is the submission the forest hangs under.
	Post *Post `json:"post"`

	// Comments are the top-level comments in delivery order; replies
	// nest inside each node.
	Comments []*Comment `json:"comments"`

	// Abandoned counts placeholder nodes left in StatePending within
	// this thread.
	Abandoned int `json:"abandoned,omitempty"`
}

// CommentCount returns the number of comment nodes in the thread.
func (t *Thread) CommentCount() int {
	n := 0
	for _, c := range t.Comments {
		n += c.Size()
	}
	return n
}

// CrawlReport is the job summary handed to the report writers and stored
// in job history. Counters are filled incrementally by the controller and
// frozen when the job reaches a terminal state.
type CrawlReport struct {
	// JobID is the crawl job's identifier.
	JobID string `json:"job_id"`

	// Target is the crawled target in user notation (r/name, u/name).
	Target string `json:"target"`

	// Mode is the job's data-type selection.
	Mode Mode `json:"mode"`

	// Format is the export serialization used.
	Format Format `json:"format"`

	// DryRun is true when export output was discarded.
	DryRun bool `json:"dry_run"`

	// Outcome is the final disposition.
	Outcome Outcome `json:"outcome"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PostsExported counts post records written to the sink.
	PostsExported int `json:"posts_exported"`

	// CommentsExported counts comment nodes written to the sink,
	// including retained removed/deleted nodes.
	CommentsExported int `json:"comments_exported"`

	// SubtreesAbandoned counts placeholders converted to terminal
	// pending nodes instead of being expanded.
	SubtreesAbandoned int `json:"subtrees_abandoned"`

	// PostsSkipped counts posts whose comment fetch failed after
	// retries and was skipped in degraded mode.
	PostsSkipped int `json:"posts_skipped"`

	// ListingTruncated is true when the listing walk ended early because
	// a page fetch exhausted its retries. Items yielded before the
	// truncation remain valid.
	ListingTruncated bool `json:"listing_truncated,omitempty"`

	// PagesFetched counts listing pages retrieved.
	PagesFetched int `json:"pages_fetched"`

	// Duplicates counts items the seen-set rejected.
	Duplicates int `json:"duplicates"`

	// ThrottleEpisodes counts upstream throttling signals absorbed by
	// the rate gate.
	ThrottleEpisodes int `json:"throttle_episodes"`

	// Retries counts fetch attempts beyond the first, across all calls.
	Retries int `json:"retries"`

	// MediaSaved and MediaFailed count media downloads.
	MediaSaved  int `json:"media_saved"`
	MediaFailed int `json:"media_failed"`

	// PostTypes counts exported posts by type (text, link, image, …).
	PostTypes map[string]int `json:"post_types,omitempty"`

	// Error holds the abort reason for OutcomeAborted reports.
	Error string `json:"error,omitempty"`
}

// Duration returns the wall-clock length of the run.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// OutcomeLine renders the outcome with its qualifiers, e.g.
// "partial (3 subtrees abandoned, 1 post skipped)".
func (r *CrawlReport) OutcomeLine() string {
	switch r.Outcome {
	case OutcomePartial:
		line := fmt.Sprintf("partial (%d subtrees abandoned, %d posts skipped",
			r.SubtreesAbandoned, r.PostsSkipped)
		if r.ListingTruncated {
			line += ", listing truncated"
		}
		return line + ")"
	case OutcomeAborted:
		if r.Error != "" {
			return "aborted: " + r.Error
		}
		return "aborted"
	case OutcomeComplete:
		return "complete"
	default:
		return string(r.Outcome)
	}
}

// Degraded reports whether any data was abandoned, skipped, or cut off.
func (r *CrawlReport) Degraded() bool {
	return r.SubtreesAbandoned > 0 || r.PostsSkipped > 0 || r.ListingTruncated
}
