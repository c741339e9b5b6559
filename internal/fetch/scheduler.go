package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/ratelimit"
)

// Default retry policy. Budgets count retries beyond the first attempt.
const (
	// DefaultMaxTransientRetries bounds retries of timeouts and
	// connection faults per call.
	DefaultMaxTransientRetries = 3

	// DefaultMaxThrottleRetries bounds retries of upstream throttle
	// signals per call.
	DefaultMaxThrottleRetries = 5

	// DefaultBaseDelay is the first backoff delay; it doubles per
	// attempt up to DefaultMaxDelay.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps backoff growth.
	DefaultMaxDelay = 30 * time.Second

	// DefaultTimeout bounds a single transport call.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the default cap on in-flight fetches.
	DefaultConcurrency = 4
)

// Transport is the abstract fetch capability the crawl engine consumes.
// Implementations must classify every failure through this package's
// constructors; that classification is the only contract the engine
// depends on.
type Transport interface {
	// ListPage fetches one slice of a listing. An empty cursor requests
	// the first page; the returned page's After field carries the next
	// cursor or empty at the end.
	ListPage(ctx context.Context, target model.Target, cursor string, pageSize int) (*model.Page, error)

	// FetchChildren resolves a "load more" placeholder: it fetches the
	// named children (base-36 IDs) under the given post fullname and
	// returns them as flat comment fragments and deeper placeholders.
	FetchChildren(ctx context.Context, postFullname string, childIDs []string) ([]model.Item, error)
}

// Scheduler issues fetches through the rate gate with bounded retries.
// One Scheduler is shared by all workers of a job; it is safe for
// concurrent use and caps the number of in-flight transport calls.
type Scheduler struct {
	transport Transport
	gate      *ratelimit.Gate
	sem       *semaphore.Weighted
	logger    *slog.Logger

	maxTransient int
	maxThrottle  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	timeout      time.Duration
	jitterFrac   float64

	mu      sync.Mutex
	retries int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger for retry and backoff events.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryBudgets overrides the transient and throttle retry budgets.
func WithRetryBudgets(transient, throttle int) SchedulerOption {
	return func(s *Scheduler) {
		if transient >= 0 {
			s.maxTransient = transient
		}
		if throttle >= 0 {
			s.maxThrottle = throttle
		}
	}
}

// WithBackoff overrides the backoff curve.
func WithBackoff(base, maxDelay time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if base > 0 {
			s.baseDelay = base
		}
		if maxDelay > 0 {
			s.maxDelay = maxDelay
		}
	}
}

// WithTimeout overrides the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithConcurrency overrides the in-flight fetch cap.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithJitter overrides the random fraction added to backoff delays.
func WithJitter(frac float64) SchedulerOption {
	return func(s *Scheduler) {
		if frac >= 0 && frac <= 1 {
			s.jitterFrac = frac
		}
	}
}

// NewScheduler creates a Scheduler over the given transport and gate.
func NewScheduler(transport Transport, gate *ratelimit.Gate, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		transport:    transport,
		gate:         gate,
		sem:          semaphore.NewWeighted(DefaultConcurrency),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxTransient: DefaultMaxTransientRetries,
		maxThrottle:  DefaultMaxThrottleRetries,
		baseDelay:    DefaultBaseDelay,
		maxDelay:     DefaultMaxDelay,
		timeout:      DefaultTimeout,
		jitterFrac:   0.2,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ListPage fetches one listing page with the full retry policy applied.
func (s *Scheduler) ListPage(ctx context.Context, target model.Target, cursor string, pageSize int) (*model.Page, error) {
	var page *model.Page
	op := "list " + target.String()
	err := s.Do(ctx, op, func(ctx context.Context) error {
		var err error
		page, err = s.transport.ListPage(ctx, target, cursor, pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// FetchChildren resolves a placeholder's children with the full retry
// policy applied.
func (s *Scheduler) FetchChildren(ctx context.Context, postFullname string, childIDs []string) ([]model.Item, error) {
	var items []model.Item
	op := fmt.Sprintf("children of %s (%d ids)", postFullname, len(childIDs))
	err := s.Do(ctx, op, func(ctx context.Context) error {
		var err error
		items, err = s.transport.FetchChildren(ctx, postFullname, childIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Do runs one arbitrary fetch operation under the gate, the in-flight
// cap, the per-call timeout, and the retry policy. Auxiliary fetches
// (target metadata, media bytes) go through here so nothing bypasses the
// rate budget.
func (s *Scheduler) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Canceled(op, err)
	}
	defer s.sem.Release(1)

	attempt, transients, throttles := 0, 0, 0
	for {
		attempt++

		if err := s.gate.Acquire(ctx, 1); err != nil {
			return &Error{Kind: KindCanceled, Op: op, Attempts: attempt, Err: err}
		}

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		err := fn(callCtx)
		cancel()

		if err == nil {
			s.gate.ReportSuccess()
			return nil
		}

		// The job context outranks classification: a fetch that failed
		// because the job was canceled is not retryable.
		if ctx.Err() != nil {
			return &Error{Kind: KindCanceled, Op: op, Attempts: attempt, Err: err}
		}

		kind := KindOf(err)
		if kind == KindCanceled {
			// Job context is live, so this was the per-call timeout.
			kind = KindTransient
		}

		switch kind {
		case KindPermanent:
			return err
		case KindThrottled:
			throttles++
			var hint time.Duration
			var fe *Error
			if errors.As(err, &fe) {
				hint = fe.RetryAfter
			}
			s.gate.ReportThrottled(hint)
			if throttles > s.maxThrottle {
				return s.exhausted(op, attempt, err)
			}
		default:
			transients++
			if transients > s.maxTransient {
				return s.exhausted(op, attempt, err)
			}
		}

		s.mu.Lock()
		s.retries++
		s.mu.Unlock()

		delay := s.backoff(attempt)
		s.logger.Debug("retrying fetch",
			"op", op,
			"kind", kind.String(),
			"attempt", attempt,
			"delay", delay.Round(time.Millisecond),
			"cause", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Kind: KindCanceled, Op: op, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// Retries returns the total retry count across all calls, for the job
// report.
func (s *Scheduler) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// backoff computes the delay before the given attempt's retry: the base
// delay doubled per attempt, capped, plus jitter.
func (s *Scheduler) backoff(attempt int) time.Duration {
	delay := s.baseDelay << (attempt - 1)
	if delay > s.maxDelay || delay <= 0 {
		delay = s.maxDelay
	}
	if s.jitterFrac > 0 {
		delay += time.Duration(rand.Float64() * s.jitterFrac * float64(delay))
	}
	return delay
}

func (s *Scheduler) exhausted(op string, attempts int, lastErr error) error {
	s.logger.Warn("retry budget exhausted",
		"op", op,
		"attempts", attempts,
		"cause", lastErr)
	return &Error{Kind: KindExhausted, Op: op, Attempts: attempts, Err: lastErr}
}
