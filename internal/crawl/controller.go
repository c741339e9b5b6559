package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/config"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/database"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/export"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/media"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/ratelimit"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/stats"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/walker"
)

// Controller runs one crawl job to a terminal state.
type Controller struct {
	cfg    *config.Config
	logger *slog.Logger

	metadata stats.MetadataClient
	fetcher  media.Fetcher
	store    *database.Store

	gate      *ratelimit.Gate
	scheduler *fetch.Scheduler

	mu       sync.Mutex
	started  bool
	phase    Phase
	report   *model.CrawlReport
	activity []*model.Post
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger. It is also handed to the
// rate gate, the scheduler, and every component the controller builds.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStore attaches the job database. Without one the job runs
// normally but records no history and cannot checkpoint or resume.
func WithStore(store *database.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithMetadataClient enables the community stats snapshot in full mode.
// *reddit.Client satisfies the interface.
func WithMetadataClient(mc stats.MetadataClient) Option {
	return func(c *Controller) {
		c.metadata = mc
	}
}

// WithMediaFetcher enables media capture in full mode. *reddit.Client
// satisfies the interface.
func WithMediaFetcher(f media.Fetcher) Option {
	return func(c *Controller) {
		c.fetcher = f
	}
}

// New creates a Controller for one job described by cfg. The transport
// is wrapped in a scheduler that shares a single rate gate across
// listing, comment, stats, and media fetches.
func New(cfg *config.Config, transport fetch.Transport, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}

	c := &Controller{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.gate = ratelimit.New(cfg.RateBurst, cfg.RateEvery, ratelimit.WithLogger(c.logger))
	c.scheduler = fetch.NewScheduler(transport, c.gate,
		fetch.WithLogger(c.logger),
		fetch.WithRetryBudgets(cfg.MaxTransientRetries, cfg.MaxThrottleRetries),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithConcurrency(cfg.Concurrency),
	)

	return c, nil
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Run executes the job to a terminal state and returns its report. The
// error is non-nil only when the job aborted; partial completion is
// expressed through the report's outcome, not an error. A Controller
// runs exactly one job.
func (c *Controller) Run(ctx context.Context) (*model.CrawlReport, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyRan
	}
	c.started = true
	c.mu.Unlock()

	job, state, seen, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.CrawlReport{
		JobID:     job.ID,
		Target:    job.Target.String(),
		Mode:      job.Mode,
		Format:    job.Format,
		DryRun:    job.DryRun,
		StartedAt: time.Now().UTC(),
		PostTypes: make(map[string]int),
	}
	c.mu.Lock()
	c.report = report
	c.mu.Unlock()

	c.logger.Info("starting crawl job",
		"job_id", job.ID,
		"target", job.Target.String(),
		"mode", job.Mode,
		"format", job.Format,
		"dry_run", job.DryRun)
	c.recordRunning(ctx, report)

	runErr := c.execute(ctx, job, state, seen)

	return c.finalize(ctx, job, report, runErr)
}

// execute prepares the output surfaces and drives the crawl phases.
func (c *Controller) execute(ctx context.Context, job *model.CrawlJob, state walker.State, seen *walker.SeenSet) error {
	layout := config.NewLayout(c.cfg.OutputDir, job.Target)
	mediaOn := c.mediaOn(job)

	var exp export.Exporter
	if job.DryRun {
		exp = export.NewDiscard()
	} else {
		if err := layout.EnsureDirs(mediaOn); err != nil {
			return fmt.Errorf("failed to prepare output directory: %w", err)
		}
		var err error
		exp, err = export.New(job.Format, layout.Root())
		if err != nil {
			return fmt.Errorf("failed to open exporter: %w", err)
		}
	}

	var dl *media.Downloader
	if mediaOn {
		dl = media.NewDownloader(c.fetcher, media.Dirs{
			Images:   layout.MediaImagesDir(),
			Videos:   layout.MediaVideosDir(),
			Metadata: layout.MediaMetadataFile(),
		}, media.WithDoer(c.scheduler), media.WithLogger(c.logger))
	}

	runErr := c.crawl(ctx, job, state, seen, exp, dl, layout)

	// A close failure loses buffered rows, so a clean run treats it as
	// an export failure.
	if err := exp.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to finalize export: %w", err)
	}
	if dl != nil {
		if err := dl.Close(); err != nil {
			c.logger.Warn("failed to close media metadata sidecar", "error", err)
		}
	}

	return runErr
}

// crawl walks the listing, drains the comment workers, and flushes the
// trailing outputs.
func (c *Controller) crawl(ctx context.Context, job *model.CrawlJob, state walker.State, seen *walker.SeenSet, exp export.Exporter, dl *media.Downloader, layout config.Layout) error {
	lw := walker.New(c.scheduler, job.Target,
		walker.WithLogger(c.logger),
		walker.WithPageSize(c.cfg.PageSize),
		walker.WithMaxItems(c.cfg.Limit),
		walker.WithSeen(seen),
		walker.WithState(state),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	c.setPhase(PhaseListing)
	listErr := c.listPosts(gctx, job, lw, state.Pages, exp, dl, g)

	if job.Mode.WantsComments() {
		c.setPhase(PhaseFetchingComments)
	}
	workerErr := g.Wait()

	switch {
	case workerErr != nil:
		return workerErr
	case listErr != nil:
		return listErr
	}

	c.setPhase(PhaseExporting)

	if job.Target.IsUser() && job.Mode.WantsComments() {
		if err := c.listComments(ctx, job, lw.State(), seen, exp); err != nil {
			return err
		}
	}

	if c.statsOn(job) {
		if err := c.saveStats(ctx, job, layout); err != nil {
			return err
		}
	}

	return nil
}

// listPosts walks the post listing. Posts either export directly or
// fan out to the worker pool, depending on the mode. The returned
// error is abort-worthy; a truncated listing is recorded on the report
// and ends the walk without error.
func (c *Controller) listPosts(ctx context.Context, job *model.CrawlJob, lw *walker.Walker, startPages int, exp export.Exporter, dl *media.Downloader, g *errgroup.Group) error {
	defer func() {
		st := lw.State()
		dup := lw.Duplicates()
		c.bump(func(r *model.CrawlReport) {
			r.PagesFetched += st.Pages - startPages
			r.Duplicates += dup
		})
	}()

	lastSaved := startPages
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("crawl canceled: %w", ctx.Err())
		default:
		}

		before := lw.State()
		item, err := lw.Next(ctx)
		if errors.Is(err, walker.ErrEnd) {
			c.checkpoint(ctx, job, lw.State(), lw.Seen())
			return nil
		}
		if err != nil {
			if fetch.KindOf(err) == fetch.KindExhausted {
				c.logger.Warn("listing cut short",
					"target", job.Target.String(), "error", err)
				c.bump(func(r *model.CrawlReport) { r.ListingTruncated = true })
				c.checkpoint(ctx, job, lw.State(), lw.Seen())
				return nil
			}
			return err
		}
		if item.Kind != model.ItemPost {
			c.logger.Debug("ignoring non-post listing item",
				"kind", item.Kind, "identity", item.Identity())
			continue
		}

		p := item.Post
		if c.statsOn(job) {
			c.mu.Lock()
			c.activity = append(c.activity, p)
			c.mu.Unlock()
		}

		if job.Mode.WantsComments() {
			g.Go(func() error {
				select {
				case <-ctx.Done():
					return fmt.Errorf("crawl canceled: %w", ctx.Err())
				default:
				}
				return c.processPost(ctx, p, exp, dl)
			})
		} else {
			if err := exp.WritePost(p); err != nil {
				return fmt.Errorf("failed to export post %s: %w", p.ID, err)
			}
			c.bump(func(r *model.CrawlReport) {
				r.PostsExported++
				r.PostTypes[p.PostType]++
			})
		}

		// Checkpoint on page boundaries with the pre-fetch cursor: a
		// resume refetches the page being drained, and the seen set
		// suppresses the part of it that was already emitted.
		if st := lw.State(); st.Pages > lastSaved {
			lastSaved = st.Pages
			c.checkpoint(ctx, job, before, lw.Seen())
		}
	}
}

// listComments walks a user's comment feed and exports the flat
// comments. Feed progress rides on the shared seen set; checkpoints
// keep the cursor of the finished submitted listing.
func (c *Controller) listComments(ctx context.Context, job *model.CrawlJob, postState walker.State, seen *walker.SeenSet, exp export.Exporter) error {
	feed := job.Target.CommentsFeed()
	fw := walker.New(c.scheduler, feed,
		walker.WithLogger(c.logger),
		walker.WithPageSize(c.cfg.PageSize),
		walker.WithMaxItems(c.cfg.Limit),
		walker.WithSeen(seen),
	)

	c.logger.Info("walking comment feed", "target", feed.String())

	defer func() {
		st := fw.State()
		dup := fw.Duplicates()
		c.bump(func(r *model.CrawlReport) {
			r.PagesFetched += st.Pages
			r.Duplicates += dup
		})
	}()

	lastSaved := 0
	for {
		item, err := fw.Next(ctx)
		if errors.Is(err, walker.ErrEnd) {
			return nil
		}
		if err != nil {
			if fetch.KindOf(err) == fetch.KindExhausted {
				c.logger.Warn("comment feed cut short",
					"target", feed.String(), "error", err)
				c.bump(func(r *model.CrawlReport) { r.ListingTruncated = true })
				return nil
			}
			return err
		}
		if item.Kind != model.ItemComment {
			continue
		}

		if err := exp.WriteComment(item.Comment); err != nil {
			return fmt.Errorf("failed to export comment %s: %w", item.Comment.ID, err)
		}
		c.bump(func(r *model.CrawlReport) { r.CommentsExported++ })

		if st := fw.State(); st.Pages > lastSaved {
			lastSaved = st.Pages
			c.checkpoint(ctx, job, postState, seen)
		}
	}
}

// saveStats snapshots community metadata, folds in the activity
// summary of the crawled posts, and writes subreddit_stats.json. Stats
// are supplementary: failures are logged, only cancellation aborts.
func (c *Controller) saveStats(ctx context.Context, job *model.CrawlJob, layout config.Layout) error {
	collector := stats.NewCollector(c.metadata,
		stats.WithDoer(c.scheduler),
		stats.WithLogger(c.logger))

	snap, err := collector.Snapshot(ctx, job.Target.Name)
	if err != nil {
		if fetch.KindOf(err) == fetch.KindCanceled {
			return err
		}
		c.logger.Warn("stats snapshot unavailable",
			"subreddit", job.Target.Name, "error", err)
		return nil
	}

	c.mu.Lock()
	posts := c.activity
	c.mu.Unlock()
	snap.Activity = stats.NewAnalyzer().Activity(posts)

	if err := snap.Save(layout.StatsFile()); err != nil {
		c.logger.Warn("failed to save stats file",
			"file", layout.StatsFile(), "error", err)
		return nil
	}

	c.logger.Info("stats snapshot saved",
		"subreddit", job.Target.Name, "file", layout.StatsFile())
	return nil
}

// mediaOn reports whether this job downloads media.
func (c *Controller) mediaOn(job *model.CrawlJob) bool {
	return c.cfg.Media && job.Mode == model.ModeFull && c.fetcher != nil && !job.DryRun
}

// statsOn reports whether this job snapshots community stats.
func (c *Controller) statsOn(job *model.CrawlJob) bool {
	return job.Mode == model.ModeFull && !job.Target.IsUser() && c.metadata != nil && !job.DryRun
}

// bump applies a counter update to the report under the lock.
func (c *Controller) bump(fn func(*model.CrawlReport)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.report)
}

func (c *Controller) setPhase(next Phase) {
	c.mu.Lock()
	prev := c.phase
	c.phase = next
	c.mu.Unlock()

	if prev != next {
		c.logger.Debug("phase transition", "from", prev, "to", next)
	}
}
