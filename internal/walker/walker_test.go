package walker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

var testTarget = model.Target{Kind: model.TargetSubreddit, Name: "golang"}

// fakeLister serves scripted pages keyed by the cursor they are
// requested with and records the cursor of every call.
type fakeLister struct {
	mu      sync.Mutex
	pages   map[string]*model.Page
	errs    map[string]error
	cursors []string
}

func (f *fakeLister) ListPage(_ context.Context, _ model.Target, cursor string, _ int) (*model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cursors = append(f.cursors, cursor)
	if err, ok := f.errs[cursor]; ok {
		return nil, err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return nil, fetch.Permanent("list page", errors.New("no page scripted for cursor"))
	}
	return page, nil
}

func (f *fakeLister) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.cursors...)
}

func post(id string) model.Item {
	return model.PostItem(&model.Post{ID: id, Fullname: "t3_" + id})
}

// collect drains the walker and returns the yielded identities.
func collect(t *testing.T, w *Walker) []string {
	t.Helper()

	var ids []string
	for {
		item, err := w.Next(context.Background())
		if errors.Is(err, ErrEnd) {
			return ids
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		ids = append(ids, item.Identity())
	}
}

func assertIDs(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("yielded %d items %v, want %d items %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalkerTraversesAllPages(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: map[string]*model.Page{
		"":   {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		"c1": {Items: []model.Item{post("c"), post("d")}, After: "c2"},
		"c2": {Items: []model.Item{post("e"), post("f")}, After: ""},
	}}

	w := New(lister, testTarget, WithPageSize(2))
	ids := collect(t, w)

	assertIDs(t, ids, []string{"t3_a", "t3_b", "t3_c", "t3_d", "t3_e", "t3_f"})
	assertIDs(t, lister.calls(), []string{"", "c1", "c2"})

	state := w.State()
	if state.Cursor != "" {
		t.Errorf("State().Cursor = %q, want empty", state.Cursor)
	}
	if state.Pages != 3 {
		t.Errorf("State().Pages = %d, want 3", state.Pages)
	}
	if state.Count != 6 {
		t.Errorf("State().Count = %d, want 6", state.Count)
	}

	// The walk stays finished.
	if _, err := w.Next(context.Background()); !errors.Is(err, ErrEnd) {
		t.Errorf("Next() after end = %v, want ErrEnd", err)
	}
}

func TestWalkerSkipsDuplicateIdentities(t *testing.T) {
	t.Parallel()

	// Page overlap: "b" slid from page one onto page two while paging.
	lister := &fakeLister{pages: map[string]*model.Page{
		"":   {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		"c1": {Items: []model.Item{post("b"), post("c")}, After: ""},
	}}

	w := New(lister, testTarget)
	ids := collect(t, w)

	assertIDs(t, ids, []string{"t3_a", "t3_b", "t3_c"})
	if got := w.Duplicates(); got != 1 {
		t.Errorf("Duplicates() = %d, want 1", got)
	}
	if got := w.Seen().Len(); got != 3 {
		t.Errorf("Seen().Len() = %d, want 3", got)
	}
}

func TestWalkerAllDuplicatePageKeepsPaging(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: map[string]*model.Page{
		"":   {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		"c1": {Items: []model.Item{post("a"), post("b")}, After: "c2"},
		"c2": {Items: []model.Item{post("c")}, After: ""},
	}}

	w := New(lister, testTarget)
	ids := collect(t, w)

	assertIDs(t, ids, []string{"t3_a", "t3_b", "t3_c"})
	assertIDs(t, lister.calls(), []string{"", "c1", "c2"})
	if got := w.Duplicates(); got != 2 {
		t.Errorf("Duplicates() = %d, want 2", got)
	}
}

func TestWalkerEmptyListing(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: map[string]*model.Page{
		"": {Items: nil, After: ""},
	}}

	w := New(lister, testTarget)
	ids := collect(t, w)

	if len(ids) != 0 {
		t.Errorf("yielded %v from empty listing, want none", ids)
	}
	state := w.State()
	if state.Pages != 1 || state.Count != 0 {
		t.Errorf("State() = %+v, want Pages=1 Count=0", state)
	}
}

func TestWalkerMaxItemsCap(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: map[string]*model.Page{
		"":   {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		"c1": {Items: []model.Item{post("c"), post("d")}, After: "c2"},
		"c2": {Items: []model.Item{post("e"), post("f")}, After: ""},
	}}

	w := New(lister, testTarget, WithMaxItems(3))
	ids := collect(t, w)

	assertIDs(t, ids, []string{"t3_a", "t3_b", "t3_c"})
	assertIDs(t, lister.calls(), []string{"", "c1"})
	if got := w.State().Count; got != 3 {
		t.Errorf("State().Count = %d, want 3", got)
	}
}

func TestWalkerStopsOnRepeatedCursor(t *testing.T) {
	t.Parallel()

	// A listing that keeps returning the same continuation token would
	// otherwise loop forever.
	lister := &fakeLister{pages: map[string]*model.Page{
		"":   {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		"c1": {Items: []model.Item{post("c"), post("d")}, After: "c1"},
	}}

	w := New(lister, testTarget)
	ids := collect(t, w)

	assertIDs(t, ids, []string{"t3_a", "t3_b", "t3_c", "t3_d"})
	assertIDs(t, lister.calls(), []string{"", "c1"})
}

func TestWalkerResumeYieldsDisjointItems(t *testing.T) {
	t.Parallel()

	pages := map[string]*model.Page{
		"":   {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		"c1": {Items: []model.Item{post("c"), post("d")}, After: "c2"},
		"c2": {Items: []model.Item{post("d"), post("e"), post("f")}, After: ""},
	}

	// First run stops partway through.
	first := New(&fakeLister{pages: pages}, testTarget, WithMaxItems(4))
	firstIDs := collect(t, first)
	assertIDs(t, firstIDs, []string{"t3_a", "t3_b", "t3_c", "t3_d"})

	// Checkpoint state and seen-set through JSON, as the job store does.
	stateJSON, err := json.Marshal(first.State())
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	seenJSON, err := json.Marshal(first.Seen())
	if err != nil {
		t.Fatalf("marshal seen-set: %v", err)
	}

	var state State
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	seen := NewSeenSet()
	if err := json.Unmarshal(seenJSON, seen); err != nil {
		t.Fatalf("unmarshal seen-set: %v", err)
	}

	lister := &fakeLister{pages: pages}
	resumed := New(lister, testTarget, WithState(state), WithSeen(seen))
	resumedIDs := collect(t, resumed)

	// Only items the first run never yielded, fetched from the saved
	// cursor onward.
	assertIDs(t, resumedIDs, []string{"t3_e", "t3_f"})
	assertIDs(t, lister.calls(), []string{"c2"})
	for _, id := range resumedIDs {
		for _, prev := range firstIDs {
			if id == prev {
				t.Errorf("resumed walk re-yielded %q", id)
			}
		}
	}
	if got := resumed.State().Count; got != 6 {
		t.Errorf("resumed State().Count = %d, want 6", got)
	}
}

func TestWalkerSurfacesPermanentError(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{
		errs: map[string]error{
			"": fetch.Permanent("list page", errors.New("listing is private")),
		},
	}

	w := New(lister, testTarget)
	_, err := w.Next(context.Background())
	if !fetch.IsKind(err, fetch.KindPermanent) {
		t.Fatalf("Next() error = %v, want kind permanent", err)
	}

	// The failure is terminal.
	_, again := w.Next(context.Background())
	if !errors.Is(again, err) {
		t.Errorf("Next() after failure = %v, want the original error", again)
	}
}

func TestWalkerKeepsItemsYieldedBeforeExhaustion(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{
		pages: map[string]*model.Page{
			"": {Items: []model.Item{post("a"), post("b")}, After: "c1"},
		},
		errs: map[string]error{
			"c1": &fetch.Error{
				Kind:     fetch.KindExhausted,
				Op:       "list page",
				Attempts: 4,
				Err:      io.ErrUnexpectedEOF,
			},
		},
	}

	w := New(lister, testTarget)

	var ids []string
	for i := 0; i < 2; i++ {
		item, err := w.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		ids = append(ids, item.Identity())
	}
	assertIDs(t, ids, []string{"t3_a", "t3_b"})

	_, err := w.Next(context.Background())
	if !fetch.IsKind(err, fetch.KindExhausted) {
		t.Fatalf("Next() error = %v, want kind exhausted", err)
	}
	if got := w.State().Count; got != 2 {
		t.Errorf("State().Count = %d, want 2", got)
	}
}

func TestWalkerStateJSONRoundTrip(t *testing.T) {
	t.Parallel()

	state := State{Cursor: "t3_1abc", Pages: 7, Count: 512}

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var restored State
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if restored != state {
		t.Errorf("round-trip = %+v, want %+v", restored, state)
	}
}
