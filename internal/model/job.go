package model

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects which data a crawl job collects.
type Mode string

const (
	// ModePosts collects the post listing only.
	ModePosts Mode = "posts"

	// ModeComments collects posts and their full comment forests.
	ModeComments Mode = "comments"

	// ModeFull collects posts, comment forests, media, and the target
	// stats snapshot.
	ModeFull Mode = "full"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePosts, ModeComments, ModeFull:
		return true
	}
	return false
}

// WantsComments reports whether the mode includes comment collection.
func (m Mode) WantsComments() bool {
	return m == ModeComments || m == ModeFull
}

// Format selects the export serialization.
type Format string

const (
	// FormatCSV exports delimited tables (posts.csv, comments.csv).
	FormatCSV Format = "csv"

	// FormatJSON exports line-delimited JSON with nested comment trees.
	FormatJSON Format = "json"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatJSON
}

// CrawlJob is one user-initiated run. It is created once, immutable
// afterwards, and owned exclusively by the crawl controller.
type CrawlJob struct {
	// ID is the job's unique identifier, also the key for its
	// checkpoint and history rows.
	ID string `json:"id"`

	// Target is what the job walks.
	Target Target `json:"target"`

	// Mode is the data-type selection.
	Mode Mode `json:"mode"`

	// Format is the export serialization.
	Format Format `json:"format"`

	// DryRun runs the full crawl but discards export output.
	DryRun bool `json:"dry_run"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewCrawlJob creates a job with a fresh UUID.
func NewCrawlJob(target Target, mode Mode, format Format, dryRun bool) *CrawlJob {
	return &CrawlJob{
		ID:        uuid.NewString(),
		Target:    target,
		Mode:      mode,
		Format:    format,
		DryRun:    dryRun,
		CreatedAt: time.Now().UTC(),
	}
}
