package export

import (
	"sync"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Discard counts records without writing anything. It backs dry runs,
// where the crawl exercises the full pipeline but leaves no output.
type Discard struct {
	mu       sync.Mutex
	posts    int
	comments int
	closed   bool
}

// NewDiscard creates a counting no-op exporter.
func NewDiscard() *Discard {
	return &Discard{}
}

// WritePost counts the post.
func (e *Discard) WritePost(_ *model.Post) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.posts++
	return nil
}

// WriteThread counts the post and every comment node in the forest.
func (e *Discard) WriteThread(t *model.Thread) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.posts++
	e.comments += t.CommentCount()
	return nil
}

// WriteComment counts the comment.
func (e *Discard) WriteComment(_ *model.Comment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.comments++
	return nil
}

// Close marks the exporter closed.
func (e *Discard) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	return nil
}

// Counts returns how many posts and comments were submitted.
func (e *Discard) Counts() (posts, comments int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.posts, e.comments
}
