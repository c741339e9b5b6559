package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/reddit"
)

// TargetStats is the community statistics document saved as
// subreddit_stats.json. Field names follow the saved-file format of
// earlier exports so downstream consumers keep working.
type TargetStats struct {
	// Name is the community name without the r/ prefix.
	Name string `json:"name"`

	// Title is the community's display title.
	Title string `json:"title"`

	// Description is the public sidebar blurb.
	Description string `json:"description"`

	// Subscribers is the member count at fetch time.
	Subscribers int `json:"subscribers"`

	// ActiveUsers is the here-now count at fetch time.
	ActiveUsers int `json:"active_users"`

	// CreatedUTC is the community creation time.
	CreatedUTC time.Time `json:"created_utc"`

	// Over18 mirrors the community's NSFW flag.
	Over18 bool `json:"over_18"`

	// Rules lists the community's posted rules.
	Rules      []reddit.Rule `json:"rules"`
	RulesCount int           `json:"rules_count"`

	// Moderators lists the community's moderator accounts.
	Moderators     []reddit.Moderator `json:"moderators"`
	ModeratorCount int                `json:"moderator_count"`

	// Flairs lists the configured link flairs.
	Flairs     []reddit.Flair `json:"flairs"`
	FlairCount int            `json:"flair_count"`

	// Activity summarizes crawled posts. Only present when the snapshot
	// was taken as part of a crawl.
	Activity *ActivityStats `json:"activity,omitempty"`

	// FetchedAt is the snapshot time.
	FetchedAt time.Time `json:"fetched_at"`
}

// Save writes the document as indented JSON to path.
func (s *TargetStats) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}

// Summary renders a short terminal summary of the snapshot.
func (s *TargetStats) Summary() string {
	p := message.NewPrinter(language.English)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("r/%s statistics:\n", s.Name))
	sb.WriteString(p.Sprintf("  Subscribers:  %d\n", s.Subscribers))
	sb.WriteString(p.Sprintf("  Active users: %d\n", s.ActiveUsers))
	sb.WriteString(fmt.Sprintf("  Rules:        %d\n", s.RulesCount))
	sb.WriteString(fmt.Sprintf("  Moderators:   %d\n", s.ModeratorCount))
	sb.WriteString(fmt.Sprintf("  Flairs:       %d\n", s.FlairCount))
	if !s.CreatedUTC.IsZero() {
		sb.WriteString(fmt.Sprintf("  Created:      %s\n", s.CreatedUTC.Format("2006-01-02")))
	}
	sb.WriteString(fmt.Sprintf("  NSFW:         %t\n", s.Over18))
	return sb.String()
}

// MetadataClient is the subset of the transport client the Collector
// needs. *reddit.Client satisfies it.
type MetadataClient interface {
	About(ctx context.Context, subreddit string) (*reddit.About, error)
	Rules(ctx context.Context, subreddit string) ([]reddit.Rule, error)
	Moderators(ctx context.Context, subreddit string) ([]reddit.Moderator, error)
	Flairs(ctx context.Context, subreddit string) ([]reddit.Flair, error)
}

// Doer wraps calls with rate gating and retries. *fetch.Scheduler
// satisfies it.
type Doer interface {
	Do(ctx context.Context, op string, fn func(context.Context) error) error
}

// Collector fetches community metadata and assembles snapshots.
type Collector struct {
	client MetadataClient
	doer   Doer
	logger *slog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithDoer routes metadata fetches through the given scheduler so they
// share the crawl's rate gate and retry budgets.
func WithDoer(d Doer) CollectorOption {
	return func(c *Collector) {
		c.doer = d
	}
}

// WithLogger sets the collector's logger.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollector creates a Collector reading metadata from client.
func NewCollector(client MetadataClient, opts ...CollectorOption) *Collector {
	c := &Collector{
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot assembles a TargetStats document for the named community.
// The about document is required; rules, moderators, and flairs degrade
// to empty lists when their endpoints fail or are disabled.
func (c *Collector) Snapshot(ctx context.Context, subreddit string) (*TargetStats, error) {
	var about *reddit.About
	err := c.do(ctx, "stats about r/"+subreddit, func(ctx context.Context) error {
		var err error
		about, err = c.client.About(ctx, subreddit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch community metadata: %w", err)
	}

	rules := []reddit.Rule{}
	if err := c.do(ctx, "stats rules r/"+subreddit, func(ctx context.Context) error {
		var err error
		rules, err = c.client.Rules(ctx, subreddit)
		return err
	}); err != nil {
		rules = []reddit.Rule{}
		c.logger.Warn("rules unavailable", "subreddit", subreddit, "error", err)
	}

	mods := []reddit.Moderator{}
	if err := c.do(ctx, "stats moderators r/"+subreddit, func(ctx context.Context) error {
		var err error
		mods, err = c.client.Moderators(ctx, subreddit)
		return err
	}); err != nil {
		mods = []reddit.Moderator{}
		c.logger.Warn("moderators unavailable", "subreddit", subreddit, "error", err)
	}

	flairs := []reddit.Flair{}
	if err := c.do(ctx, "stats flairs r/"+subreddit, func(ctx context.Context) error {
		var err error
		flairs, err = c.client.Flairs(ctx, subreddit)
		return err
	}); err != nil {
		flairs = []reddit.Flair{}
		c.logger.Warn("flairs unavailable", "subreddit", subreddit, "error", err)
	}

	return &TargetStats{
		Name:           subreddit,
		Title:          about.Title,
		Description:    about.PublicDescription,
		Subscribers:    about.Subscribers,
		ActiveUsers:    about.ActiveUserCount,
		CreatedUTC:     about.CreatedUTC,
		Over18:         about.Over18,
		Rules:          rules,
		RulesCount:     len(rules),
		Moderators:     mods,
		ModeratorCount: len(mods),
		Flairs:         flairs,
		FlairCount:     len(flairs),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

// do routes fn through the scheduler when one is configured, otherwise
// calls it directly.
func (c *Collector) do(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.doer != nil {
		return c.doer.Do(ctx, op, fn)
	}
	return fn(ctx)
}
