package crawl

import (
	"context"
	"fmt"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/export"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/forest"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/media"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/reddit"
)

// processPost fetches one post's comment forest, exports the thread,
// and downloads its media. Fetch failures skip the post and degrade
// the outcome; an export write failure or cancellation aborts the job.
func (c *Controller) processPost(ctx context.Context, p *model.Post, exp export.Exporter, dl *media.Downloader) error {
	c.logger.Debug("fetching comments", "post", p.ID, "expected", p.NumComments)

	thread, rep, err := c.buildThread(ctx, p)
	if err != nil {
		if fetch.KindOf(err) == fetch.KindCanceled {
			return err
		}
		c.logger.Warn("skipping post after comment fetch failure",
			"post", p.ID, "error", err)
		c.bump(func(r *model.CrawlReport) { r.PostsSkipped++ })
		return nil
	}

	if err := exp.WriteThread(thread); err != nil {
		return fmt.Errorf("failed to export thread %s: %w", p.ID, err)
	}

	c.bump(func(r *model.CrawlReport) {
		r.PostsExported++
		r.CommentsExported += rep.Materialized
		r.SubtreesAbandoned += rep.Pending
		r.PostTypes[p.PostType]++
	})

	if dl != nil {
		saved, failed := dl.Download(ctx, p)
		if saved > 0 || failed > 0 {
			c.bump(func(r *model.CrawlReport) {
				r.MediaSaved += saved
				r.MediaFailed += failed
			})
		}
	}

	return nil
}

// buildThread fetches the post's thread page and expands the comment
// forest under the configured policy.
func (c *Controller) buildThread(ctx context.Context, p *model.Post) (*model.Thread, forest.Report, error) {
	page, err := c.scheduler.ListPage(ctx, model.ThreadTarget(p.Subreddit, p.ID), "", c.cfg.PageSize)
	if err != nil {
		return nil, forest.Report{}, err
	}

	b := forest.NewBuilder(p.Fullname, forest.Policy{
		MaxDepth: c.cfg.MaxDepth,
		MaxNodes: c.cfg.MaxNodes,
	}, forest.WithLogger(c.logger))

	for _, item := range page.Items {
		// The listing already delivered the post itself.
		if item.Kind == model.ItemPost {
			continue
		}
		if err := b.Add(item); err != nil {
			return nil, forest.Report{}, fmt.Errorf("failed to seed comment forest for %s: %w", p.ID, err)
		}
	}

	if err := c.expand(ctx, p, b); err != nil {
		return nil, forest.Report{}, err
	}

	roots, rep := b.Finish()
	return &model.Thread{Post: p, Comments: roots, Abandoned: rep.Pending}, rep, nil
}

// expand resolves placeholders until the builder stops producing them.
// Children returned by one round may queue placeholders for the next.
func (c *Controller) expand(ctx context.Context, p *model.Post, b *forest.Builder) error {
	for {
		mores := b.TakeExpansions()
		if len(mores) == 0 {
			return nil
		}
		for _, m := range mores {
			if err := c.expandOne(ctx, p, b, m); err != nil {
				return err
			}
		}
	}
}

// expandOne resolves one placeholder. A failed fetch abandons the
// subtree instead of failing the post; only cancellation propagates.
func (c *Controller) expandOne(ctx context.Context, p *model.Post, b *forest.Builder, m *model.More) error {
	if len(m.Children) == 0 {
		// Nothing to request; leave a pending marker.
		b.Abandon(m)
		return nil
	}

	for _, chunk := range reddit.ChunkChildren(m.Children) {
		items, err := c.scheduler.FetchChildren(ctx, p.Fullname, chunk)
		if err != nil {
			if fetch.KindOf(err) == fetch.KindCanceled {
				return err
			}
			c.logger.Warn("abandoning comment subtree",
				"post", p.ID, "parent", m.ParentID, "error", err)
			b.Abandon(m)
			return nil
		}
		for _, item := range items {
			if err := b.Add(item); err != nil {
				c.logger.Warn("dropping malformed expansion item",
					"post", p.ID, "error", err)
			}
		}
	}

	return nil
}
