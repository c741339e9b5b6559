package walker

import (
	"context"
	"io"
	"log/slog"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// DefaultPageSize is the number of items requested per listing page.
// 100 is the largest slice the public listing endpoints serve.
const DefaultPageSize = 100

// Lister fetches listing pages. *fetch.Scheduler satisfies it; tests
// substitute scripted fakes.
type Lister interface {
	ListPage(ctx context.Context, target model.Target, cursor string, pageSize int) (*model.Page, error)
}

// State is a snapshot of walk progress. It round-trips through JSON
// unchanged and, together with the seen-set, is everything a later run
// needs to resume the walk.
type State struct {
	// Cursor is the continuation token to pass on the next page fetch.
	// Empty either means the walk has not started or that it finished.
	Cursor string `json:"cursor"`

	// Pages is the number of pages fetched so far.
	Pages int `json:"pages"`

	// Count is the number of items yielded so far, duplicates excluded.
	Count int `json:"count"`
}

// Walker is a lazy pull iterator over one target's listing. It fetches
// pages on demand, deduplicates against the job seen-set, and yields
// items one at a time from Next. A Walker is not safe for concurrent
// use; the seen-set it shares with other components is.
type Walker struct {
	// lister performs the page fetches, normally a *fetch.Scheduler.
	lister Lister

	// target is the listing being traversed.
	target model.Target

	// pageSize is the number of items requested per page.
	pageSize int

	// maxItems caps the total items yielded. 0 means unlimited.
	maxItems int

	// seen is the job-wide deduplication set.
	seen *SeenSet

	// logger receives per-page progress records.
	logger *slog.Logger

	// cursor is the continuation token for the next fetch.
	cursor string

	// buf holds the items of the current page; idx is the next slot.
	buf []model.Item
	idx int

	// done is set when the listing reported no further continuation.
	done bool

	// err is the terminal result of the walk, ErrEnd on normal
	// completion. Once set, Next keeps returning it.
	err error

	pages      int
	yielded    int
	duplicates int
}

// Option configures a Walker.
type Option func(*Walker)

// WithPageSize sets the number of items requested per page.
func WithPageSize(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.pageSize = n
		}
	}
}

// WithMaxItems caps the total number of items yielded. 0 means
// unlimited.
func WithMaxItems(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxItems = n
		}
	}
}

// WithLogger sets the logger for page-level progress records.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSeen shares an existing seen-set, typically one restored from a
// checkpoint or shared with the comment workers.
func WithSeen(seen *SeenSet) Option {
	return func(w *Walker) {
		if seen != nil {
			w.seen = seen
		}
	}
}

// WithState resumes the walk from a saved snapshot. Pair it with
// WithSeen carrying the seen-set saved alongside the state, or the
// resumed walk will re-yield items the original already produced.
func WithState(state State) Option {
	return func(w *Walker) {
		w.cursor = state.Cursor
		w.pages = state.Pages
		w.yielded = state.Count
	}
}

// New creates a Walker over the given target's listing.
func New(lister Lister, target model.Target, opts ...Option) *Walker {
	w := &Walker{
		lister:   lister,
		target:   target,
		pageSize: DefaultPageSize,
		seen:     NewSeenSet(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Next returns the next deduplicated item of the listing. It fetches a
// new page only when the current one is drained. Next returns ErrEnd
// once the listing or the item cap is exhausted, and keeps returning
// the same error on every call after a terminal condition. A fetch
// error surfaces as-is; items yielded before it remain valid.
func (w *Walker) Next(ctx context.Context) (model.Item, error) {
	if w.err != nil {
		return model.Item{}, w.err
	}

	for {
		if w.maxItems > 0 && w.yielded >= w.maxItems {
			w.err = ErrEnd
			return model.Item{}, w.err
		}

		if w.idx < len(w.buf) {
			item := w.buf[w.idx]
			w.idx++
			if !w.seen.CheckAndAdd(item.Identity()) {
				w.duplicates++
				continue
			}
			w.yielded++
			return item, nil
		}

		if w.done {
			w.err = ErrEnd
			return model.Item{}, w.err
		}

		if err := w.fetch(ctx); err != nil {
			w.err = err
			return model.Item{}, w.err
		}
	}
}

// fetch pulls the next page and advances the cursor. A page whose
// continuation token is empty, or that repeats the cursor just used,
// ends the walk after its items are drained.
func (w *Walker) fetch(ctx context.Context) error {
	page, err := w.lister.ListPage(ctx, w.target, w.cursor, w.pageSize)
	if err != nil {
		return err
	}

	w.pages++
	w.buf = page.Items
	w.idx = 0

	if page.After == "" || page.After == w.cursor {
		w.done = true
	}
	w.cursor = page.After

	w.logger.Debug("listing page fetched",
		"target", w.target.String(),
		"page", w.pages,
		"items", len(page.Items),
		"after", page.After)

	return nil
}

// State returns a snapshot of the walk's progress for checkpointing.
func (w *Walker) State() State {
	return State{
		Cursor: w.cursor,
		Pages:  w.pages,
		Count:  w.yielded,
	}
}

// Seen returns the seen-set the walker deduplicates against.
func (w *Walker) Seen() *SeenSet {
	return w.seen
}

// Duplicates returns the number of items skipped because their
// identity was already recorded.
func (w *Walker) Duplicates() int {
	return w.duplicates
}
