package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".redditscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// TargetConfig holds per-target overrides from the configuration file.
// Zero values mean "not set" and leave the current value untouched;
// Media is a pointer so an explicit false survives the merge.
type TargetConfig struct {
	// Mode overrides the data-type selection for this target.
	Mode string `yaml:"mode,omitempty"`

	// Format overrides the export serialization.
	Format string `yaml:"format,omitempty"`

	// Limit overrides the maximum post count.
	Limit int `yaml:"limit,omitempty"`

	// PageSize overrides the listing page size.
	PageSize int `yaml:"pageSize,omitempty"`

	// MaxDepth overrides the comment depth budget.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// MaxNodes overrides the comment node budget.
	MaxNodes int `yaml:"maxNodes,omitempty"`

	// RateEvery overrides the token refill interval, as a Go duration
	// string ("2s", "500ms").
	RateEvery string `yaml:"rateEvery,omitempty"`

	// RateBurst overrides the token-bucket capacity.
	RateBurst int `yaml:"rateBurst,omitempty"`

	// Media overrides media collection for this target.
	Media *bool `yaml:"media,omitempty"`

	// Output overrides the output directory root.
	Output string `yaml:"output,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .redditscan configuration file.
type File struct {
	// Defaults applies to every target unless overridden.
	Defaults TargetConfig `yaml:"defaults,omitempty"`

	// Targets maps target notation (r/golang, u/spez) to overrides.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`
}

// TargetConfig returns the merged configuration for one target:
// file defaults first, then the target's own section on top.
func (cf *File) TargetConfig(target string) TargetConfig {
	result := cf.Defaults

	tc, ok := cf.Targets[target]
	if !ok {
		return result
	}

	if tc.Mode != "" {
		result.Mode = tc.Mode
	}
	if tc.Format != "" {
		result.Format = tc.Format
	}
	if tc.Limit != 0 {
		result.Limit = tc.Limit
	}
	if tc.PageSize != 0 {
		result.PageSize = tc.PageSize
	}
	if tc.MaxDepth != 0 {
		result.MaxDepth = tc.MaxDepth
	}
	if tc.MaxNodes != 0 {
		result.MaxNodes = tc.MaxNodes
	}
	if tc.RateEvery != "" {
		result.RateEvery = tc.RateEvery
	}
	if tc.RateBurst != 0 {
		result.RateBurst = tc.RateBurst
	}
	if tc.Media != nil {
		result.Media = tc.Media
	}
	if tc.Output != "" {
		result.Output = tc.Output
	}
	if tc.UserAgent != "" {
		result.UserAgent = tc.UserAgent
	}

	return result
}

// LoadConfigFile loads target configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound. Callers
// decide whether that matters based on whether the path was explicit.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Targets == nil {
		cf.Targets = make(map[string]TargetConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .redditscan in the current directory
// 3. Look for .redditscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// ApplyFile merges one target's file configuration into c. Only fields
// the file actually sets are copied, so defaults and earlier layers
// survive where the file is silent.
func (c *Config) ApplyFile(cf *File, target string) error {
	if cf == nil {
		return nil
	}

	tc := cf.TargetConfig(target)

	if tc.Mode != "" {
		c.Mode = model.Mode(tc.Mode)
	}
	if tc.Format != "" {
		c.Format = model.Format(tc.Format)
	}
	if tc.Limit != 0 {
		c.Limit = tc.Limit
	}
	if tc.PageSize != 0 {
		c.PageSize = tc.PageSize
	}
	if tc.MaxDepth != 0 {
		c.MaxDepth = tc.MaxDepth
	}
	if tc.MaxNodes != 0 {
		c.MaxNodes = tc.MaxNodes
	}
	if tc.RateEvery != "" {
		d, err := time.ParseDuration(tc.RateEvery)
		if err != nil {
			return fmt.Errorf("invalid rateEvery %q: %w", tc.RateEvery, err)
		}
		c.RateEvery = d
	}
	if tc.RateBurst != 0 {
		c.RateBurst = tc.RateBurst
	}
	if tc.Media != nil {
		c.Media = *tc.Media
	}
	if tc.Output != "" {
		c.OutputDir = tc.Output
	}
	if tc.UserAgent != "" {
		c.UserAgent = tc.UserAgent
	}

	return nil
}

// Template is a commented .redditscan example written by the init
// command.
const Template = `# redditscan configuration file
#
# Values here override built-in defaults; command-line flags override
# everything. The defaults section applies to all targets, and each
# targets entry overrides it for one target.

defaults:
  format: csv
  limit: 100
  # media: false

targets:
  r/golang:
    mode: full
    maxDepth: 10
    maxNodes: 500
  u/spez:
    mode: posts
    limit: 50
`
