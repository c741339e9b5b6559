// Package export writes crawl records to their final on-disk form.
//
// Exporters are append-only and incremental: one record per call,
// flushed before the call returns, so memory stays bounded no matter
// how large the job is and a crash loses at most the record in flight.
// Output is never rolled back; whatever was exported before a failure
// stays on disk.
//
// Two formats exist. CSV produces posts.csv and comments.csv, where
// comment rows carry identity, parent identity, depth, and sibling
// position so the tree can be rebuilt from the flat file. JSONL
// produces one self-describing JSON object per line, with a post's
// comment forest nested inside the post's line. A Discard exporter
// backs dry runs.
//
// All exporters are safe for concurrent use; comment threads finish in
// whatever order their workers do.
package export
