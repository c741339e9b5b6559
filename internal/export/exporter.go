package export

import (
	"fmt"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Exporter is the append-only sink for crawl output. Every method
// flushes its record before returning; a non-nil error means the record
// may be incomplete on disk and the job must stop. Implementations are
// safe for concurrent use.
type Exporter interface {
	// WritePost appends one post record without comments.
	WritePost(p *model.Post) error

	// WriteThread appends a post together with its comment forest.
	WriteThread(t *model.Thread) error

	// WriteComment appends one flat comment record, used for user
	// comment feeds where no forest exists.
	WriteComment(c *model.Comment) error

	// Close flushes and releases the underlying files. The exporter is
	// unusable afterwards.
	Close() error
}

// New creates the exporter for the given format, writing under dir.
// The directory is created if missing.
func New(format model.Format, dir string) (Exporter, error) {
	switch format {
	case model.FormatCSV:
		return NewCSV(dir)
	case model.FormatJSON:
		return NewJSONL(dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
