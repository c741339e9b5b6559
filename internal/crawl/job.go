package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/database"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/walker"
)

// prepare builds the job this controller will run: a fresh one from
// the configured target, or a resumed one restored from its
// checkpoint.
func (c *Controller) prepare(ctx context.Context) (*model.CrawlJob, walker.State, *walker.SeenSet, error) {
	if c.cfg.ResumeJobID != "" {
		return c.resume(ctx)
	}

	target, err := model.ParseTarget(c.cfg.Target)
	if err != nil {
		return nil, walker.State{}, nil, err
	}

	job := model.NewCrawlJob(target, c.cfg.Mode, c.cfg.Format, c.cfg.DryRun)
	return job, walker.State{}, walker.NewSeenSet(), nil
}

// resume restores a job from its checkpoint. Mode, format, and the
// dry-run flag come from the job's history row so the resumed run
// matches the original; the listing cursor and seen set come from the
// checkpoint.
func (c *Controller) resume(ctx context.Context) (*model.CrawlJob, walker.State, *walker.SeenSet, error) {
	if c.store == nil {
		return nil, walker.State{}, nil, ErrNoStore
	}

	cp, err := c.store.LoadCheckpoint(ctx, c.cfg.ResumeJobID)
	if err != nil {
		return nil, walker.State{}, nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, walker.State{}, nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, c.cfg.ResumeJobID)
	}

	job := &model.CrawlJob{
		ID:        cp.JobID,
		Target:    cp.Target,
		Mode:      c.cfg.Mode,
		Format:    c.cfg.Format,
		DryRun:    c.cfg.DryRun,
		CreatedAt: time.Now().UTC(),
	}
	rec, err := c.store.Job(ctx, cp.JobID)
	switch {
	case err != nil:
		c.logger.Warn("failed to read job history row",
			"job_id", cp.JobID, "error", err)
	case rec != nil:
		job.Mode = rec.Mode
		job.Format = rec.Format
		job.DryRun = rec.DryRun
		job.CreatedAt = rec.StartedAt
	}

	seen := walker.NewSeenSet()
	if len(cp.Seen) > 0 {
		if err := json.Unmarshal(cp.Seen, seen); err != nil {
			return nil, walker.State{}, nil, fmt.Errorf("failed to decode checkpoint seen set: %w", err)
		}
	}
	state := walker.State{Cursor: cp.Cursor, Pages: cp.Pages, Count: cp.Items}

	c.logger.Info("resuming crawl job",
		"job_id", job.ID,
		"target", job.Target.String(),
		"cursor", cp.Cursor,
		"items", cp.Items,
		"pages", cp.Pages)

	return job, state, seen, nil
}

// recordRunning writes the job's history row in the running state.
func (c *Controller) recordRunning(ctx context.Context, report *model.CrawlReport) {
	if c.store == nil {
		return
	}
	if err := c.store.UpsertJob(ctx, report); err != nil {
		c.logger.Warn("failed to record job start",
			"job_id", report.JobID, "error", err)
	}
}

// checkpoint persists listing progress. Failures are logged and the
// crawl carries on; the previous checkpoint stays usable.
func (c *Controller) checkpoint(ctx context.Context, job *model.CrawlJob, st walker.State, seen *walker.SeenSet) {
	if c.store == nil {
		return
	}

	seenJSON, err := json.Marshal(seen)
	if err != nil {
		c.logger.Warn("failed to encode seen set",
			"job_id", job.ID, "error", err)
		return
	}

	cp := &database.Checkpoint{
		JobID:  job.ID,
		Target: job.Target,
		Cursor: st.Cursor,
		Seen:   seenJSON,
		Items:  st.Count,
		Pages:  st.Pages,
	}
	if err := c.store.SaveCheckpoint(ctx, cp); err != nil {
		c.logger.Warn("failed to save checkpoint",
			"job_id", job.ID, "error", err)
		return
	}

	c.logger.Debug("checkpoint saved",
		"job_id", job.ID,
		"cursor", st.Cursor,
		"items", st.Count,
		"pages", st.Pages)
}

// finalize freezes the report, resolves the outcome, and records the
// terminal state. The checkpoint of a finished job is deleted; an
// aborted job keeps its checkpoint so it can resume.
func (c *Controller) finalize(ctx context.Context, job *model.CrawlJob, report *model.CrawlReport, runErr error) (*model.CrawlReport, error) {
	c.mu.Lock()
	report.FinishedAt = time.Now().UTC()
	report.ThrottleEpisodes = c.gate.Stats().Episodes
	report.Retries = c.scheduler.Retries()
	switch {
	case runErr != nil:
		report.Outcome = model.OutcomeAborted
		report.Error = runErr.Error()
	case report.Degraded():
		report.Outcome = model.OutcomePartial
	default:
		report.Outcome = model.OutcomeComplete
	}
	c.mu.Unlock()

	if runErr != nil {
		c.setPhase(PhaseAborted)
	} else {
		c.setPhase(PhaseDone)
	}

	// Terminal bookkeeping must land even when the run context is
	// already canceled.
	bg := context.WithoutCancel(ctx)
	if c.store != nil {
		if err := c.store.UpsertJob(bg, report); err != nil {
			c.logger.Warn("failed to record job history",
				"job_id", job.ID, "error", err)
		}
		if report.Outcome != model.OutcomeAborted {
			if err := c.store.DeleteCheckpoint(bg, job.ID); err != nil {
				c.logger.Warn("failed to delete checkpoint",
					"job_id", job.ID, "error", err)
			}
		}
	}

	c.logger.Info("crawl job finished",
		"job_id", job.ID,
		"outcome", report.OutcomeLine(),
		"duration", report.Duration().Round(time.Millisecond),
		"posts", report.PostsExported,
		"comments", report.CommentsExported)

	return report, runErr
}
