package config

import "errors"

// Configuration validation errors, returned by Config.Validate().
// Sentinel values let the CLI distinguish problems with errors.Is while
// keeping the messages printable as-is.
var (
	// ErrNoTarget is returned when no crawl target is specified.
	ErrNoTarget = errors.New("no target specified: provide r/<subreddit> or u/<user>")

	// ErrInvalidMode is returned for an unknown mode value.
	ErrInvalidMode = errors.New("invalid mode: must be posts, comments, or full")

	// ErrInvalidFormat is returned for an unknown export format.
	ErrInvalidFormat = errors.New("invalid format: must be csv or json")

	// ErrInvalidLimit is returned when the post limit is negative.
	// Use 0 for an unbounded crawl.
	ErrInvalidLimit = errors.New("invalid limit: must be non-negative")

	// ErrInvalidPageSize is returned when the page size is outside
	// Reddit's accepted 1..100 range.
	ErrInvalidPageSize = errors.New("invalid page size: must be between 1 and 100")

	// ErrInvalidConcurrency is returned when the worker count is not
	// positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRate is returned when the rate burst or refill interval
	// is not positive.
	ErrInvalidRate = errors.New("invalid rate: burst and refill interval must be positive")

	// ErrInvalidBudget is returned when a comment depth or node budget
	// is negative. Use 0 for unlimited.
	ErrInvalidBudget = errors.New("invalid comment budget: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not
	// positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is
	// negative. Use 0 to keep the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested. Only one report file can be saved.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
