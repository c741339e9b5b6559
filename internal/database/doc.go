// Package database persists crawl job history and resumption
// checkpoints in a local SQLite database.
//
// The store keeps two tables: jobs, one row per crawl job with its
// final counters, and checkpoints, one row per unfinished job holding
// the listing cursor and the set of already-exported identities. A
// checkpoint is written periodically while a job runs and deleted when
// the job completes, so any checkpoint still present belongs to a job
// that can be resumed.
//
// SQLite needs no server and keeps the whole history in one file under
// the user's data directory, which suits a single-user CLI. The store
// uses a single connection because SQLite allows only one writer.
package database
