package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new redditscan configuration file",
		Long: `Initialize creates a new .redditscan configuration file in the current directory.

The generated file includes:
- Default settings applied to every target
- Commented examples for per-target overrides
- Documentation for all available options

Examples:
  # Create .redditscan in current directory
  redditscan init

  # Create config file at a specific path
  redditscan init -o myconfig.yaml

  # Force overwrite existing file
  redditscan init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write configuration file
	if err := os.WriteFile(outputPath, []byte(config.Template), 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("Created configuration file: %s\n", outputPath)
	fmt.Println("\nEdit this file to configure per-target settings such as:")
	fmt.Println("  - Crawl mode and post limits per subreddit")
	fmt.Println("  - Comment depth and node budgets")
	fmt.Println("  - Rate gate pacing and media collection")

	return nil
}
