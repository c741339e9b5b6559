package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default penalty shape for throttle signals that carry no Retry-After
// hint. The penalty doubles per consecutive episode up to the cap.
const (
	// DefaultBasePenalty is the suppression applied on the first
	// unhinted throttle signal.
	DefaultBasePenalty = 5 * time.Second

	// DefaultMaxPenalty caps the exponential penalty growth.
	DefaultMaxPenalty = 5 * time.Minute

	// DefaultJitterFrac is the random fraction added to every penalty so
	// restarted workers do not resume in lockstep.
	DefaultJitterFrac = 0.25
)

// Stats is a snapshot of the gate's internal counters.
type Stats struct {
	// Acquired is the total number of tokens handed out.
	Acquired int

	// Episodes is the total number of throttle signals absorbed.
	Episodes int

	// Streak is the current run of consecutive throttle episodes with no
	// intervening success.
	Streak int
}

// Gate is a shared token-bucket rate limiter with throttle suppression.
// All methods are safe for concurrent use; Acquire serializes on the
// underlying limiter so one budget governs every worker.
type Gate struct {
	limiter *rate.Limiter
	logger  *slog.Logger

	mu          sync.Mutex
	resumeAt    time.Time
	acquired    int
	episodes    int
	streak      int
	basePenalty time.Duration
	maxPenalty  time.Duration
	jitterFrac  float64
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger for throttle suppression events.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPenalty overrides the unhinted penalty curve.
func WithPenalty(base, maxPenalty time.Duration) Option {
	return func(g *Gate) {
		if base > 0 {
			g.basePenalty = base
		}
		if maxPenalty > 0 {
			g.maxPenalty = maxPenalty
		}
	}
}

// WithJitter overrides the random fraction added to penalties.
// frac must be in [0, 1]; values outside are ignored.
func WithJitter(frac float64) Option {
	return func(g *Gate) {
		if frac >= 0 && frac <= 1 {
			g.jitterFrac = frac
		}
	}
}

// New creates a Gate with the given bucket capacity and refill interval:
// one token becomes available every refill, up to capacity tokens banked.
func New(capacity int, refill time.Duration, opts ...Option) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	if refill <= 0 {
		refill = time.Second
	}

	g := &Gate{
		limiter:     rate.NewLimiter(rate.Every(refill), capacity),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		basePenalty: DefaultBasePenalty,
		maxPenalty:  DefaultMaxPenalty,
		jitterFrac:  DefaultJitterFrac,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Acquire blocks until cost tokens are available and any throttle
// suppression window has passed, or until ctx is done. cost must not
// exceed the bucket capacity.
func (g *Gate) Acquire(ctx context.Context, cost int) error {
	if cost < 1 {
		cost = 1
	}

	// Honor the suppression window first. The window can be extended by
	// another worker while this one sleeps, hence the loop.
	for {
		g.mu.Lock()
		wait := time.Until(g.resumeAt)
		g.mu.Unlock()

		if wait <= 0 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := g.limiter.WaitN(ctx, cost); err != nil {
		return err
	}

	g.mu.Lock()
	g.acquired += cost
	g.mu.Unlock()

	return nil
}

// ReportThrottled records an upstream throttling signal: the bucket is
// drained and acquisition is suppressed until now+retryAfter, or until an
// exponential default (doubling per consecutive episode) when the signal
// carried no hint. Later resume times always win over earlier ones.
func (g *Gate) ReportThrottled(retryAfter time.Duration) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.episodes++
	g.streak++

	penalty := retryAfter
	if penalty <= 0 {
		penalty = g.basePenalty << (g.streak - 1)
		if penalty > g.maxPenalty || penalty <= 0 {
			penalty = g.maxPenalty
		}
	}
	if g.jitterFrac > 0 {
		penalty += time.Duration(rand.Float64() * g.jitterFrac * float64(penalty))
	}

	// Drain whatever is banked so the next acquisition starts from an
	// empty bucket once the window passes.
	if tokens := int(g.limiter.Tokens()); tokens > 0 {
		g.limiter.AllowN(now, tokens)
	}

	if resume := now.Add(penalty); resume.After(g.resumeAt) {
		g.resumeAt = resume
	}

	g.logger.Warn("throttled by upstream",
		"penalty", penalty.Round(time.Millisecond),
		"episode", g.episodes,
		"streak", g.streak)
}

// ReportSuccess resets the consecutive-episode streak after a fetch that
// was answered normally. Total episode counts are unaffected.
func (g *Gate) ReportSuccess() {
	g.mu.Lock()
	g.streak = 0
	g.mu.Unlock()
}

// ResumeAt returns the end of the current suppression window; callers can
// use it to report how long the job will stay idle.
func (g *Gate) ResumeAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumeAt
}

// Stats returns a snapshot of the gate's counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Acquired: g.acquired,
		Episodes: g.episodes,
		Streak:   g.streak,
	}
}
