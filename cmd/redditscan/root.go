// Package main provides the entry point for the redditscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for redditscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redditscan",
		Short: "Rate-governed Reddit content crawler",
		Long: `redditscan collects posts, comment trees, and media from subreddits
and user profiles through Reddit's public JSON endpoints. No account
or API key is required.

All requests share a single token-bucket rate gate, so crawls stay
well below Reddit's tolerance for anonymous clients. Interrupted jobs
are checkpointed and can be resumed with 'crawl --resume'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
