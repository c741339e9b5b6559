package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// dbFileName is the database file created under the store directory.
const dbFileName = "redditscan.db"

// Job status values for the jobs table.
const (
	// StatusRunning marks a job that has not reached a terminal state.
	StatusRunning = "running"

	// StatusFinished marks a job with a recorded outcome.
	StatusFinished = "finished"
)

// Store provides SQLite-based storage for job history and checkpoints.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so checkpoint writes don't
	// block history reads.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite DSN: mode=rw prevents creating new files,
	// mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- One row per crawl job, updated in place as the job progresses.
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		mode TEXT NOT NULL,
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		outcome TEXT,
		posts_exported INTEGER DEFAULT 0,
		comments_exported INTEGER DEFAULT 0,
		subtrees_abandoned INTEGER DEFAULT 0,
		posts_skipped INTEGER DEFAULT 0,
		media_saved INTEGER DEFAULT 0,
		pages_fetched INTEGER DEFAULT 0,
		dry_run INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		duration_seconds REAL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_target ON jobs(target);
	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);

	-- Resumption state for unfinished jobs. Deleted on completion.
	CREATE TABLE IF NOT EXISTS checkpoints (
		job_id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		cursor TEXT,
		seen TEXT,
		items INTEGER DEFAULT 0,
		pages INTEGER DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_target ON checkpoints(target);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// JobRecord is one row of job history.
type JobRecord struct {
	// JobID is the job's unique identifier.
	JobID string

	// Target is the crawled target in user notation (r/name, u/name).
	Target string

	// Mode is the job's data-type selection.
	Mode model.Mode

	// Format is the export serialization used.
	Format model.Format

	// Status is StatusRunning or StatusFinished.
	Status string

	// Outcome is the final disposition, empty while running.
	Outcome model.Outcome

	// Counters frozen from the job's report.
	PostsExported     int
	CommentsExported  int
	SubtreesAbandoned int
	PostsSkipped      int
	MediaSaved        int
	PagesFetched      int

	// DryRun is true when export output was discarded.
	DryRun bool

	// Error holds the abort reason for aborted jobs.
	Error string

	// StartedAt and FinishedAt bound the run. FinishedAt is zero while
	// the job is running.
	StartedAt  time.Time
	FinishedAt time.Time

	// Duration is the recorded wall-clock length of the run.
	Duration time.Duration
}

// UpsertJob inserts or updates the job row for the given report. The
// controller calls it once when a job starts and again at every state
// of interest, so the stored row always reflects the latest counters.
func (s *Store) UpsertJob(ctx context.Context, report *model.CrawlReport) error {
	status := StatusFinished
	if report.FinishedAt.IsZero() {
		status = StatusRunning
	}

	query := `
	INSERT INTO jobs (job_id, target, mode, format, status, outcome,
		posts_exported, comments_exported, subtrees_abandoned, posts_skipped,
		media_saved, pages_fetched, dry_run, error,
		started_at, finished_at, duration_seconds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		status = excluded.status,
		outcome = excluded.outcome,
		posts_exported = excluded.posts_exported,
		comments_exported = excluded.comments_exported,
		subtrees_abandoned = excluded.subtrees_abandoned,
		posts_skipped = excluded.posts_skipped,
		media_saved = excluded.media_saved,
		pages_fetched = excluded.pages_fetched,
		error = excluded.error,
		finished_at = excluded.finished_at,
		duration_seconds = excluded.duration_seconds
	`

	_, err := s.db.ExecContext(ctx, query,
		report.JobID,
		report.Target,
		string(report.Mode),
		string(report.Format),
		status,
		string(report.Outcome),
		report.PostsExported,
		report.CommentsExported,
		report.SubtreesAbandoned,
		report.PostsSkipped,
		report.MediaSaved,
		report.PagesFetched,
		report.DryRun,
		report.Error,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.Duration().Seconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}

	return nil
}

// Job retrieves a single job row by ID. Returns nil when the job is
// unknown.
func (s *Store) Job(ctx context.Context, jobID string) (*JobRecord, error) {
	query := jobSelect + ` WHERE job_id = ?`

	row := s.db.QueryRowContext(ctx, query, jobID)
	record, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return record, nil
}

// History returns job rows, newest first. limit <= 0 returns all rows.
func (s *Store) History(ctx context.Context, limit int) ([]JobRecord, error) {
	query := jobSelect + ` ORDER BY started_at DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

const jobSelect = `
	SELECT job_id, target, mode, format, status, outcome,
		posts_exported, comments_exported, subtrees_abandoned, posts_skipped,
		media_saved, pages_fetched, dry_run, error,
		started_at, finished_at, duration_seconds
	FROM jobs`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var (
		record          JobRecord
		mode, format    string
		outcome         sql.NullString
		errText         sql.NullString
		started         string
		finished        sql.NullString
		durationSeconds float64
	)

	err := row.Scan(
		&record.JobID,
		&record.Target,
		&mode,
		&format,
		&record.Status,
		&outcome,
		&record.PostsExported,
		&record.CommentsExported,
		&record.SubtreesAbandoned,
		&record.PostsSkipped,
		&record.MediaSaved,
		&record.PagesFetched,
		&record.DryRun,
		&errText,
		&started,
		&finished,
		&durationSeconds,
	)
	if err != nil {
		return nil, err
	}

	record.Mode = model.Mode(mode)
	record.Format = model.Format(format)
	record.Outcome = model.Outcome(outcome.String)
	record.Error = errText.String
	record.StartedAt = parseTimestamp(started)
	record.FinishedAt = parseTimestamp(finished.String)
	record.Duration = time.Duration(durationSeconds * float64(time.Second))

	return &record, nil
}

// Checkpoint is the resumption snapshot for one job: where the listing
// walk stands and which identities were already exported.
type Checkpoint struct {
	// JobID is the owning job.
	JobID string

	// Target is the job's crawl target.
	Target model.Target

	// Cursor is the listing continuation token to resume from.
	Cursor string

	// Seen is the serialized seen-set, a JSON array of identities.
	Seen json.RawMessage

	// Items is the number of items yielded so far.
	Items int

	// Pages is the number of listing pages fetched so far.
	Pages int

	// UpdatedAt is when the checkpoint was last written.
	UpdatedAt time.Time
}

// SaveCheckpoint inserts or replaces the checkpoint for cp.JobID. A
// zero UpdatedAt is filled with the current time.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	targetJSON, err := json.Marshal(cp.Target)
	if err != nil {
		return fmt.Errorf("failed to serialize target: %w", err)
	}

	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	query := `
	INSERT INTO checkpoints (job_id, target, cursor, seen, items, pages, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		cursor = excluded.cursor,
		seen = excluded.seen,
		items = excluded.items,
		pages = excluded.pages,
		updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		cp.JobID,
		string(targetJSON),
		cp.Cursor,
		string(cp.Seen),
		cp.Items,
		cp.Pages,
		formatTimestamp(updated),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// LoadCheckpoint retrieves the checkpoint for a job. Returns nil when
// no checkpoint exists.
func (s *Store) LoadCheckpoint(ctx context.Context, jobID string) (*Checkpoint, error) {
	query := `
	SELECT job_id, target, cursor, seen, items, pages, updated_at
	FROM checkpoints
	WHERE job_id = ?
	`

	return s.scanCheckpoint(s.db.QueryRowContext(ctx, query, jobID))
}

// LatestCheckpoint retrieves the most recently updated checkpoint for a
// target. Returns nil when the target has no resumable checkpoint.
func (s *Store) LatestCheckpoint(ctx context.Context, target model.Target) (*Checkpoint, error) {
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize target: %w", err)
	}

	query := `
	SELECT job_id, target, cursor, seen, items, pages, updated_at
	FROM checkpoints
	WHERE target = ?
	ORDER BY updated_at DESC
	LIMIT 1
	`

	return s.scanCheckpoint(s.db.QueryRowContext(ctx, query, string(targetJSON)))
}

func (s *Store) scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp         Checkpoint
		targetJSON string
		cursor     sql.NullString
		seen       sql.NullString
		updated    string
	)

	err := row.Scan(&cp.JobID, &targetJSON, &cursor, &seen, &cp.Items, &cp.Pages, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(targetJSON), &cp.Target); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint target: %w", err)
	}
	cp.Cursor = cursor.String
	if seen.Valid && seen.String != "" {
		cp.Seen = json.RawMessage(seen.String)
	}
	cp.UpdatedAt = parseTimestamp(updated)

	return &cp, nil
}

// DeleteCheckpoint removes the checkpoint for a job. Deleting a
// checkpoint that doesn't exist is not an error.
func (s *Store) DeleteCheckpoint(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Vacuum reclaims space from deleted checkpoints and compacts the file.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// formatTimestamp renders a timestamp for storage. Zero times become
// the empty string so unfinished jobs have no finished_at value.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339,              // storage format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending
// on configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
