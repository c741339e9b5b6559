package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Environment variables recognized by ApplyEnv. Each overrides the
// corresponding Config field when set.
const (
	EnvMode        = "REDDITSCAN_MODE"
	EnvFormat      = "REDDITSCAN_FORMAT"
	EnvLimit       = "REDDITSCAN_LIMIT"
	EnvPageSize    = "REDDITSCAN_PAGE_SIZE"
	EnvConcurrency = "REDDITSCAN_CONCURRENCY"
	EnvRateBurst   = "REDDITSCAN_RATE_BURST"
	EnvRateEvery   = "REDDITSCAN_RATE_EVERY"
	EnvMaxDepth    = "REDDITSCAN_MAX_DEPTH"
	EnvMaxNodes    = "REDDITSCAN_MAX_NODES"
	EnvTimeout     = "REDDITSCAN_TIMEOUT"
	EnvOutput      = "REDDITSCAN_OUTPUT"
	EnvMedia       = "REDDITSCAN_MEDIA"
	EnvProxy       = "REDDITSCAN_PROXY"
	EnvUserAgent   = "REDDITSCAN_USER_AGENT"
	EnvDBDir       = "REDDITSCAN_DB_DIR"
	EnvLogFile     = "REDDITSCAN_LOG_FILE"
	EnvVerbose     = "REDDITSCAN_VERBOSE"
)

// ApplyEnv loads a .env file when one exists in the working directory,
// then applies REDDITSCAN_* environment variables to c. Unset variables
// leave the current values untouched.
func (c *Config) ApplyEnv() error {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	if v := os.Getenv(EnvMode); v != "" {
		c.Mode = model.Mode(v)
	}
	if v := os.Getenv(EnvFormat); v != "" {
		c.Format = model.Format(v)
	}
	if err := envInt(EnvLimit, &c.Limit); err != nil {
		return err
	}
	if err := envInt(EnvPageSize, &c.PageSize); err != nil {
		return err
	}
	if err := envInt(EnvConcurrency, &c.Concurrency); err != nil {
		return err
	}
	if err := envInt(EnvRateBurst, &c.RateBurst); err != nil {
		return err
	}
	if err := envDuration(EnvRateEvery, &c.RateEvery); err != nil {
		return err
	}
	if err := envInt(EnvMaxDepth, &c.MaxDepth); err != nil {
		return err
	}
	if err := envInt(EnvMaxNodes, &c.MaxNodes); err != nil {
		return err
	}
	if err := envDuration(EnvTimeout, &c.Timeout); err != nil {
		return err
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.OutputDir = v
	}
	if err := envBool(EnvMedia, &c.Media); err != nil {
		return err
	}
	if v := os.Getenv(EnvProxy); v != "" {
		c.ProxyAddress = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv(EnvDBDir); v != "" {
		c.DBDir = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if err := envBool(EnvVerbose, &c.Verbose); err != nil {
		return err
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
