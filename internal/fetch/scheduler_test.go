package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/ratelimit"
)

// fakeTransport lets each test script the transport's behavior.
type fakeTransport struct {
	listFn     func(ctx context.Context, target model.Target, cursor string, pageSize int) (*model.Page, error)
	childrenFn func(ctx context.Context, post string, ids []string) ([]model.Item, error)
}

func (f *fakeTransport) ListPage(ctx context.Context, target model.Target, cursor string, pageSize int) (*model.Page, error) {
	return f.listFn(ctx, target, cursor, pageSize)
}

func (f *fakeTransport) FetchChildren(ctx context.Context, post string, ids []string) ([]model.Item, error) {
	return f.childrenFn(ctx, post, ids)
}

// fastGate returns a gate that never meaningfully delays a test.
func fastGate() *ratelimit.Gate {
	return ratelimit.New(64, time.Microsecond,
		ratelimit.WithJitter(0),
		ratelimit.WithPenalty(time.Millisecond, 2*time.Millisecond))
}

func fastScheduler(transport Transport, gate *ratelimit.Gate, opts ...SchedulerOption) *Scheduler {
	base := []SchedulerOption{
		WithBackoff(time.Millisecond, 2*time.Millisecond),
		WithJitter(0),
		WithTimeout(0),
	}
	return NewScheduler(transport, gate, append(base, opts...)...)
}

func TestSchedulerThrottledTwiceThenSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	want := &model.Page{Items: []model.Item{model.PostItem(&model.Post{Fullname: "t3_a"})}}
	ft := &fakeTransport{
		listFn: func(_ context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			if calls.Add(1) <= 2 {
				return nil, Throttled("list", 0, errors.New("too many requests (429)"))
			}
			return want, nil
		},
	}

	gate := fastGate()
	s := fastScheduler(ft, gate)

	page, err := s.ListPage(context.Background(), model.Target{Kind: model.TargetSubreddit, Name: "golang"}, "", 2)
	if err != nil {
		t.Fatalf("ListPage returned error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Identity() != "t3_a" {
		t.Errorf("unexpected page: %+v", page)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("transport called %d times, want 3", got)
	}
	if got := gate.Stats().Episodes; got != 2 {
		t.Errorf("gate recorded %d backoff episodes, want 2", got)
	}
	if got := s.Retries(); got != 2 {
		t.Errorf("Retries() = %d, want 2", got)
	}
}

func TestSchedulerPermanentSurfacesImmediately(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ft := &fakeTransport{
		listFn: func(_ context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			calls.Add(1)
			return nil, Permanent("list r/gone", errors.New("not found (404)"))
		},
	}

	s := fastScheduler(ft, fastGate())

	_, err := s.ListPage(context.Background(), model.Target{Kind: model.TargetSubreddit, Name: "gone"}, "", 25)
	if !IsKind(err, KindPermanent) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("transport called %d times, want exactly 1 (no retries)", got)
	}
	if got := s.Retries(); got != 0 {
		t.Errorf("Retries() = %d, want 0", got)
	}
}

func TestSchedulerTransientExhaustsBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	cause := errors.New("connection reset")
	ft := &fakeTransport{
		listFn: func(_ context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			calls.Add(1)
			return nil, Transient("list", cause)
		},
	}

	s := fastScheduler(ft, fastGate(), WithRetryBudgets(2, 0))

	_, err := s.ListPage(context.Background(), model.Target{Kind: model.TargetSubreddit, Name: "golang"}, "", 25)
	if !IsKind(err, KindExhausted) {
		t.Fatalf("error = %v, want exhausted", err)
	}
	if !errors.Is(err, cause) {
		t.Error("exhausted error should wrap the last cause")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("transport called %d times, want 3 (initial + 2 retries)", got)
	}
}

func TestSchedulerThrottleBudgetSeparateFromTransient(t *testing.T) {
	t.Parallel()

	// Alternate throttle and transient failures; each has its own budget
	// so the call survives more failures than either budget alone.
	var calls atomic.Int32
	ft := &fakeTransport{
		listFn: func(_ context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			n := calls.Add(1)
			switch {
			case n <= 4 && n%2 == 1:
				return nil, Throttled("list", 0, errors.New("429"))
			case n <= 4:
				return nil, Transient("list", errors.New("reset"))
			default:
				return &model.Page{}, nil
			}
		},
	}

	s := fastScheduler(ft, fastGate(), WithRetryBudgets(2, 2))

	if _, err := s.ListPage(context.Background(), model.Target{Kind: model.TargetSubreddit, Name: "golang"}, "", 25); err != nil {
		t.Fatalf("ListPage returned error: %v", err)
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("transport called %d times, want 5", got)
	}
}

func TestSchedulerCancellationDuringBackoff(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		listFn: func(_ context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			return nil, Transient("list", errors.New("reset"))
		},
	}

	gate := fastGate()
	s := NewScheduler(ft, gate,
		WithBackoff(time.Second, time.Second),
		WithJitter(0),
		WithTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.ListPage(ctx, model.Target{Kind: model.TargetSubreddit, Name: "golang"}, "", 25)
	if !IsKind(err, KindCanceled) {
		t.Fatalf("error = %v, want canceled", err)
	}
}

func TestSchedulerPerCallTimeoutCountsAsTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ft := &fakeTransport{
		listFn: func(ctx context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			calls.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	s := NewScheduler(ft, fastGate(),
		WithBackoff(time.Millisecond, time.Millisecond),
		WithJitter(0),
		WithTimeout(10*time.Millisecond),
		WithRetryBudgets(1, 0))

	_, err := s.ListPage(context.Background(), model.Target{Kind: model.TargetSubreddit, Name: "golang"}, "", 25)
	if !IsKind(err, KindExhausted) {
		t.Fatalf("error = %v, want exhausted (timeouts count toward the transient budget)", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("transport called %d times, want 2", got)
	}
}

func TestSchedulerFetchChildren(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		childrenFn: func(_ context.Context, post string, ids []string) ([]model.Item, error) {
			if post != "t3_p" {
				t.Errorf("post = %q, want t3_p", post)
			}
			items := make([]model.Item, 0, len(ids))
			for _, id := range ids {
				items = append(items, model.CommentItem(&model.Comment{ID: id, Fullname: "t1_" + id, PostID: post}))
			}
			return items, nil
		},
	}

	s := fastScheduler(ft, fastGate())

	items, err := s.FetchChildren(context.Background(), "t3_p", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("FetchChildren returned error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
}

func TestSchedulerCapsInFlightFetches(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	ft := &fakeTransport{
		listFn: func(_ context.Context, _ model.Target, _ string, _ int) (*model.Page, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return &model.Page{}, nil
		},
	}

	s := fastScheduler(ft, fastGate(), WithConcurrency(2))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ListPage(context.Background(), model.Target{Kind: model.TargetSubreddit, Name: "golang"}, "", 25)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak in-flight fetches = %d, want <= 2", got)
	}
}
