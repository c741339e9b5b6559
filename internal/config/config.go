package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/forest"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/reddit"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/walker"
)

// Default configuration values. Values that belong to a specific
// component are re-exported from the owning package so there is exactly
// one place where each number lives.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "redditscan"

	// DefaultLimit is the maximum number of posts collected per job.
	// Deep archives need an explicit --limit; unbounded crawls of large
	// communities take hours under the rate gate.
	DefaultLimit = 100

	// DefaultPageSize is the listing page size requested from Reddit.
	DefaultPageSize = walker.DefaultPageSize

	// MaxPageSize is the largest limit value Reddit honors on listing
	// endpoints.
	MaxPageSize = 100

	// DefaultConcurrency bounds the comment-thread worker pool.
	DefaultConcurrency = fetch.DefaultConcurrency

	// DefaultRateBurst is the token-bucket capacity. A small burst lets a
	// thread's follow-up fetches proceed without queueing while keeping
	// the sustained rate at one request per DefaultRateEvery.
	DefaultRateBurst = 4

	// DefaultRateEvery is the token refill interval. One request every
	// two seconds stays inside Reddit's tolerance for anonymous clients.
	DefaultRateEvery = 2 * time.Second

	// DefaultMaxDepth is the comment-expansion depth budget.
	DefaultMaxDepth = forest.DefaultMaxDepth

	// DefaultMaxNodes is the per-thread comment node budget.
	DefaultMaxNodes = forest.DefaultMaxNodes

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = reddit.DefaultTimeout

	// DefaultUserAgent is the browser User-Agent presented to Reddit.
	DefaultUserAgent = reddit.DefaultUserAgent

	// DefaultMaxBodySize limits response and media download sizes.
	DefaultMaxBodySize = reddit.DefaultMaxBodySize

	// DefaultOutputDir is where exported data trees are written, one
	// r_<name> or u_<name> directory per target.
	DefaultOutputDir = "data"
)

// Config holds all configuration options for a crawl. It is populated
// by the CLI and passed through the application by value injection
// rather than global state.
type Config struct {
	// Target is the crawl target as the user wrote it (r/golang,
	// u/spez, or a bare subreddit name).
	Target string

	// Mode selects which data the job collects: posts, comments, full.
	Mode model.Mode

	// Format selects the export serialization: csv or json.
	Format model.Format

	// Limit is the maximum number of posts to collect. 0 means
	// unbounded; the listing then runs until Reddit stops paginating.
	Limit int

	// PageSize is the listing page size, capped at 100 by Reddit.
	PageSize int

	// Concurrency is the number of comment threads fetched in parallel.
	// All workers still share one rate gate.
	Concurrency int

	// RateBurst is the token-bucket capacity.
	RateBurst int

	// RateEvery is the interval at which one token refills.
	RateEvery time.Duration

	// MaxDepth is the comment-expansion depth budget. 0 means unlimited.
	MaxDepth int

	// MaxNodes is the per-thread comment node budget. 0 means unlimited.
	MaxNodes int

	// MaxTransientRetries bounds retry attempts for transient fetch
	// failures.
	MaxTransientRetries int

	// MaxThrottleRetries bounds retry attempts when throttled upstream.
	MaxThrottleRetries int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// OutputDir is the root of the exported data tree.
	OutputDir string

	// Media enables downloading post media and extracting image
	// metadata. Only effective in full mode.
	Media bool

	// DryRun runs the complete crawl but discards export output.
	DryRun bool

	// ResumeJobID resumes an interrupted job from its checkpoint
	// instead of starting fresh.
	ResumeJobID string

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// DBDir is the directory holding the job-history database.
	// Defaults to the XDG data directory.
	DBDir string

	// LogFile, when set, receives a copy of the structured log output.
	LogFile string

	// Verbose enables debug-level log output.
	Verbose bool

	// ConfigFilePath is an explicit .redditscan file path. If empty,
	// the current directory and then the home directory are searched.
	ConfigFilePath string

	// JSONReport saves the job report as report.json in the output
	// tree. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport saves the job report as report.md in the output
	// tree. Mutually exclusive with JSONReport.
	MarkdownReport bool
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so the zero Config is not usable.
func NewConfig() *Config {
	return &Config{
		Mode:                model.ModePosts,
		Format:              model.FormatCSV,
		Limit:               DefaultLimit,
		PageSize:            DefaultPageSize,
		Concurrency:         DefaultConcurrency,
		RateBurst:           DefaultRateBurst,
		RateEvery:           DefaultRateEvery,
		MaxDepth:            DefaultMaxDepth,
		MaxNodes:            DefaultMaxNodes,
		MaxTransientRetries: fetch.DefaultMaxTransientRetries,
		MaxThrottleRetries:  fetch.DefaultMaxThrottleRetries,
		Timeout:             DefaultTimeout,
		OutputDir:           DefaultOutputDir,
		Media:               true,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		DBDir:               XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for redditscan.
// On Linux: ~/.local/share/redditscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for redditscan.
// On Linux: ~/.config/redditscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for redditscan.
// On Linux: ~/.cache/redditscan
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem
// found. It is called once after all layers are applied, before any
// network traffic.
func (c *Config) Validate() error {
	if c.Target == "" {
		return ErrNoTarget
	}
	if !c.Mode.Valid() {
		return ErrInvalidMode
	}
	if !c.Format.Valid() {
		return ErrInvalidFormat
	}
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return ErrInvalidPageSize
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateBurst <= 0 || c.RateEvery <= 0 {
		return ErrInvalidRate
	}
	if c.MaxDepth < 0 || c.MaxNodes < 0 {
		return ErrInvalidBudget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
