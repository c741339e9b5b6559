package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/config"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/database"
)

// NewHistoryCmd creates the history command.
// It lists crawl jobs recorded in the local job database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List crawl jobs recorded in the local database",
		Long: `History lists past and running crawl jobs, newest first.

Every crawl records a job row with its target, mode, outcome, and
result counters. Aborted jobs keep a checkpoint; their job IDs can be
passed to 'crawl --resume' to pick up where the crawl stopped.

Examples:
  # Show the 20 most recent jobs
  redditscan history

  # Show everything
  redditscan history --limit 0`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", 20,
		"Maximum number of jobs to show (0 = all)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	store, err := database.Open(historyDBDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open job database: %w", err)
	}
	defer store.Close()

	jobs, err := store.History(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("failed to list job history: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No crawl jobs found in the database.")
		fmt.Fprintln(w, "\nUse 'redditscan crawl <target>' to start a crawl.")
		return nil
	}

	fmt.Fprintf(w, "Crawl jobs (%d):\n\n", len(jobs))
	fmt.Fprintf(w, "  %-36s  %-20s  %-8s  %-8s  %6s  %8s  %s\n",
		"JOB ID", "TARGET", "MODE", "OUTCOME", "POSTS", "COMMENTS", "STARTED")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 104))

	for _, job := range jobs {
		fmt.Fprintf(w, "  %-36s  %-20s  %-8s  %-8s  %6d  %8d  %s\n",
			job.JobID,
			job.Target,
			job.Mode,
			jobOutcome(job),
			job.PostsExported,
			job.CommentsExported,
			job.StartedAt.Format("2006-01-02 15:04:05"),
		)
	}

	fmt.Fprintln(w, "\nUse 'redditscan crawl --resume <job-id>' to resume an aborted job.")

	return nil
}

// jobOutcome renders the job's outcome column. Jobs that have not
// finished show their status instead.
func jobOutcome(job database.JobRecord) string {
	if job.Status == database.StatusRunning {
		return job.Status
	}
	return string(job.Outcome)
}

// historyDBDir returns the job database directory, honoring the same
// environment override the crawl command uses.
func historyDBDir() string {
	if v := os.Getenv(config.EnvDBDir); v != "" {
		return v
	}
	return config.XDGDataDir()
}
