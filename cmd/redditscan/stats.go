package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/config"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/log"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/reddit"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/stats"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [subreddit]",
		Short: "Fetch subreddit metadata without crawling",
		Long: `Stats fetches a subreddit's public metadata in a handful of requests:
subscriber counts, description, rules, moderators, and post flairs.

This is a quick reconnaissance step before committing to a full crawl.
User profiles have no equivalent metadata endpoints, so stats accepts
subreddit targets only.

Examples:
  # Print a human-readable summary
  redditscan stats r/golang

  # Raw statistics as JSON
  redditscan stats --json r/golang

  # Save the snapshot to a file
  redditscan stats -o golang_stats.json r/golang`,
		Args: cobra.ExactArgs(1),
		RunE: runStatsCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output raw statistics as JSON")
	cmd.Flags().StringP("output", "o", "",
		"Write the JSON snapshot to the given file instead of stdout")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request HTTP timeout")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", "",
		"User-Agent header sent to Reddit")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, args []string) error {
	target, err := model.ParseTarget(args[0])
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", args[0], err)
	}
	if target.IsUser() {
		return errors.New("stats requires a subreddit target (r/name)")
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))

	client, err := newStatsClient(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to create Reddit client: %w", err)
	}

	collector := stats.NewCollector(client, stats.WithLogger(logger))
	snap, err := collector.Snapshot(context.Background(), target.Name)
	if err != nil {
		return fmt.Errorf("failed to fetch statistics for %s: %w", target, err)
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outputPath != "" {
		if err := snap.Save(outputPath); err != nil {
			return fmt.Errorf("failed to save statistics: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Statistics saved to: %s\n", outputPath)
		return nil
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(snap)
	}

	fmt.Fprint(cmd.OutOrStdout(), snap.Summary())
	return nil
}

// newStatsClient builds a Reddit client from the stats command's flags.
func newStatsClient(cmd *cobra.Command, logger *slog.Logger) (*reddit.Client, error) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	proxy, err := cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}
	userAgent, err := cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	opts := []reddit.Option{
		reddit.WithTimeout(timeout),
		reddit.WithLogger(logger),
	}
	if proxy != "" {
		opts = append(opts, reddit.WithProxy(proxy))
	}
	if userAgent != "" {
		opts = append(opts, reddit.WithUserAgent(userAgent))
	}
	return reddit.New(opts...)
}
