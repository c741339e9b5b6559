package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/config"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/crawl"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/database"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/log"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/reddit"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/report"
)

// resumeLatest is the sentinel --resume value that picks the target's
// most recently updated checkpoint.
const resumeLatest = "latest"

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [target]",
		Short: "Crawl a subreddit or user and export its content",
		Long: `Crawl collects content from a subreddit (r/name) or a user profile
(u/name) through Reddit's public JSON endpoints.

Three modes are available:
- posts:    post listings only (default)
- comments: posts plus their full comment trees
- full:     comments plus media downloads and subreddit statistics

All requests pass through a shared token-bucket rate gate. Partial
results are kept when a crawl is interrupted or degrades, and the
listing position is checkpointed so the job can be resumed.

Examples:
  # Collect the newest 100 posts from r/golang as CSV
  redditscan crawl r/golang

  # Full archive of a subreddit with comment trees and media, as JSONL
  redditscan crawl --mode full --format json --limit 500 r/golang

  # Crawl a user's posts and comment history
  redditscan crawl --mode comments u/spez

  # Resume the most recent interrupted crawl of a target
  redditscan crawl --resume latest r/golang

  # Resume a specific job from 'redditscan history'
  redditscan crawl --resume 4f7c2a9e-1b3d-4e5f-8a6b-9c0d1e2f3a4b

  # Rehearse without writing anything
  redditscan crawl --dry-run --mode full r/golang

Configuration file (.redditscan) example:
  defaults:
    format: csv
    limit: 100
  targets:
    r/golang:
      mode: full
      maxDepth: 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Data selection flags
	cmd.Flags().StringP("mode", "m", string(model.ModePosts),
		"Data to collect: posts, comments, or full")
	cmd.Flags().StringP("format", "f", string(model.FormatCSV),
		"Export serialization: csv or json")
	cmd.Flags().IntP("limit", "l", config.DefaultLimit,
		"Maximum number of posts to collect (0 = unbounded)")
	cmd.Flags().Int("page-size", config.DefaultPageSize,
		"Listing page size (Reddit caps this at 100)")
	cmd.Flags().Bool("no-media", false,
		"Skip media downloads in full mode")

	// Pacing flags
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of comment threads fetched in parallel")
	cmd.Flags().Duration("rate-every", config.DefaultRateEvery,
		"Interval at which one request token refills")
	cmd.Flags().Int("rate-burst", config.DefaultRateBurst,
		"Request token-bucket capacity")
	cmd.Flags().Int("max-transient-retries", fetch.DefaultMaxTransientRetries,
		"Retry budget for transient fetch failures")
	cmd.Flags().Int("max-throttle-retries", fetch.DefaultMaxThrottleRetries,
		"Retry budget for upstream throttling")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request HTTP timeout")

	// Comment budget flags
	cmd.Flags().Int("max-depth", config.DefaultMaxDepth,
		"Comment tree depth budget (0 = unlimited)")
	cmd.Flags().Int("max-nodes", config.DefaultMaxNodes,
		"Per-thread comment node budget (0 = unlimited)")

	// Job lifecycle flags
	cmd.Flags().BoolP("dry-run", "n", false,
		"Run the crawl but discard export output")
	cmd.Flags().StringP("resume", "r", "",
		"Resume a checkpointed job by ID, or 'latest' for the target's newest checkpoint")

	// Connection flags
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", "",
		"User-Agent header sent to Reddit")

	// Configuration and output flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .redditscan in current or home directory)")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Root directory for exported data trees")
	cmd.Flags().String("log-file", "",
		"Append structured JSON logs to this file")
	cmd.Flags().BoolP("json", "j", false,
		"Save the job report as report.json in the output tree (mutually exclusive with --markdown)")
	cmd.Flags().Bool("markdown", false,
		"Save the job report as report.md in the output tree (mutually exclusive with --json)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	// Set up structured logging. With --log-file the same records are
	// also appended to the file as JSON.
	verbose := cfg.Verbose || getVerboseFlag(cmd)
	logger := log.NewLogger(os.Stderr, verbose)
	if cfg.LogFile != "" {
		teeLogger, closeLog, err := log.NewTeeLogger(os.Stderr, cfg.LogFile, verbose)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeLog(); err != nil {
				logger.Error("failed to close log file", "error", err)
			}
		}()
		logger = teeLogger
	}
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown.
	// An interrupted crawl keeps its partial output and leaves a
	// checkpoint behind for --resume.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildCrawlConfig assembles the crawl configuration in layers:
// built-in defaults first, then the configuration file, then
// REDDITSCAN_* environment variables, then explicit command-line flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if len(args) > 0 {
		cfg.Target = args[0]
	}

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly named a config file it must exist. An
	// absent default file is the normal case.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := cfg.ApplyFile(cf, cfg.Target); err != nil {
			return nil, err
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFlags copies flag values the user actually set onto cfg. Flags
// left at their defaults keep whatever the earlier layers decided.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("mode") {
		v, err := flags.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = model.Mode(v)
	}
	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = model.Format(v)
	}
	if flags.Changed("limit") {
		v, err := flags.GetInt("limit")
		if err != nil {
			return err
		}
		cfg.Limit = v
	}
	if flags.Changed("page-size") {
		v, err := flags.GetInt("page-size")
		if err != nil {
			return err
		}
		cfg.PageSize = v
	}
	if flags.Changed("no-media") {
		v, err := flags.GetBool("no-media")
		if err != nil {
			return err
		}
		cfg.Media = !v
	}
	if flags.Changed("concurrency") {
		v, err := flags.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = v
	}
	if flags.Changed("rate-every") {
		v, err := flags.GetDuration("rate-every")
		if err != nil {
			return err
		}
		cfg.RateEvery = v
	}
	if flags.Changed("rate-burst") {
		v, err := flags.GetInt("rate-burst")
		if err != nil {
			return err
		}
		cfg.RateBurst = v
	}
	if flags.Changed("max-transient-retries") {
		v, err := flags.GetInt("max-transient-retries")
		if err != nil {
			return err
		}
		cfg.MaxTransientRetries = v
	}
	if flags.Changed("max-throttle-retries") {
		v, err := flags.GetInt("max-throttle-retries")
		if err != nil {
			return err
		}
		cfg.MaxThrottleRetries = v
	}
	if flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = v
	}
	if flags.Changed("max-depth") {
		v, err := flags.GetInt("max-depth")
		if err != nil {
			return err
		}
		cfg.MaxDepth = v
	}
	if flags.Changed("max-nodes") {
		v, err := flags.GetInt("max-nodes")
		if err != nil {
			return err
		}
		cfg.MaxNodes = v
	}
	if flags.Changed("dry-run") {
		v, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = v
	}
	if flags.Changed("resume") {
		v, err := flags.GetString("resume")
		if err != nil {
			return err
		}
		cfg.ResumeJobID = v
	}
	if flags.Changed("proxy") {
		v, err := flags.GetString("proxy")
		if err != nil {
			return err
		}
		cfg.ProxyAddress = v
	}
	if flags.Changed("user-agent") {
		v, err := flags.GetString("user-agent")
		if err != nil {
			return err
		}
		cfg.UserAgent = v
	}
	if flags.Changed("output") {
		v, err := flags.GetString("output")
		if err != nil {
			return err
		}
		cfg.OutputDir = v
	}
	if flags.Changed("log-file") {
		v, err := flags.GetString("log-file")
		if err != nil {
			return err
		}
		cfg.LogFile = v
	}
	if flags.Changed("json") {
		v, err := flags.GetBool("json")
		if err != nil {
			return err
		}
		cfg.JSONReport = v
	}
	if flags.Changed("markdown") {
		v, err := flags.GetBool("markdown")
		if err != nil {
			return err
		}
		cfg.MarkdownReport = v
	}

	return nil
}

// runCrawl executes the crawl job.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Job history and checkpoints live in a local SQLite database.
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open job database: %w", err)
	}
	defer store.Close()

	if err := resolveResume(ctx, store, cfg, logger); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	client, err := newRedditClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create Reddit client: %w", err)
	}

	ctrl, err := crawl.New(cfg, client,
		crawl.WithLogger(logger),
		crawl.WithStore(store),
		crawl.WithMetadataClient(client),
		crawl.WithMediaFetcher(client),
	)
	if err != nil {
		return err
	}

	fmt.Printf("Crawling %s...\n", cfg.Target)
	startTime := time.Now()

	crawlReport, runErr := ctrl.Run(ctx)
	if crawlReport == nil {
		return runErr
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Crawl finished in %s\n\n", elapsed.Round(time.Millisecond))

	if err := outputReport(cfg, crawlReport); err != nil {
		logger.Error("report output failed", "target", cfg.Target, "error", err)
	}

	// An aborted job surfaces its error as the exit status. The report
	// above already told the user what was kept.
	return runErr
}

// resolveResume turns the --resume flag value into a concrete job ID.
// "latest" picks the target's most recently updated checkpoint and
// falls back to a fresh crawl when there is none.
func resolveResume(ctx context.Context, store *database.Store, cfg *config.Config, logger *slog.Logger) error {
	if cfg.ResumeJobID == "" {
		return nil
	}

	if cfg.ResumeJobID != resumeLatest {
		cp, err := store.LoadCheckpoint(ctx, cfg.ResumeJobID)
		if err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp == nil {
			return fmt.Errorf("no checkpoint for job %q (use 'redditscan history' to list jobs)", cfg.ResumeJobID)
		}
		cfg.Target = cp.Target.String()
		return nil
	}

	if cfg.Target == "" {
		return errors.New("a target argument is required with --resume latest")
	}
	target, err := model.ParseTarget(cfg.Target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", cfg.Target, err)
	}

	cp, err := store.LatestCheckpoint(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to find latest checkpoint: %w", err)
	}
	if cp == nil {
		logger.Info("no checkpoint found, starting a fresh crawl", "target", cfg.Target)
		cfg.ResumeJobID = ""
		return nil
	}

	cfg.ResumeJobID = cp.JobID
	return nil
}

// newRedditClient builds the HTTP client from the configuration.
func newRedditClient(cfg *config.Config, logger *slog.Logger) (*reddit.Client, error) {
	opts := []reddit.Option{
		reddit.WithUserAgent(cfg.UserAgent),
		reddit.WithTimeout(cfg.Timeout),
		reddit.WithMaxBodySize(cfg.MaxBodySize),
		reddit.WithLogger(logger),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, reddit.WithProxy(cfg.ProxyAddress))
	}
	return reddit.New(opts...)
}

// outputReport prints the human-readable summary to stdout and saves
// the optional report file into the output tree.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport) error {
	if _, err := report.NewSimpleWriter(os.Stdout).Write(crawlReport); err != nil {
		return err
	}

	// Dry runs have no output tree to put a report file in.
	if cfg.DryRun || (!cfg.JSONReport && !cfg.MarkdownReport) {
		return nil
	}

	target, err := model.ParseTarget(crawlReport.Target)
	if err != nil {
		return err
	}
	layout := config.NewLayout(cfg.OutputDir, target)

	var path string
	var build func(io.Writer) report.Writer
	if cfg.JSONReport {
		path = layout.JSONReportFile()
		build = func(w io.Writer) report.Writer {
			return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
		}
	} else {
		path = layout.MarkdownReportFile()
		build = func(w io.Writer) report.Writer {
			return report.NewMarkdownWriter(w)
		}
	}

	if err := saveReportFile(path, build, crawlReport); err != nil {
		return err
	}
	fmt.Printf("Report saved to: %s\n", path)
	return nil
}

// saveReportFile writes one report file with owner-only permissions.
func saveReportFile(path string, build func(io.Writer) report.Writer, crawlReport *model.CrawlReport) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if _, err := build(f).Write(crawlReport); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
