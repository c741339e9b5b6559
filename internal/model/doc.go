// Package model defines the core data structures used throughout the crawler.
//
// This package contains the following main types:
//   - Target: a community (r/name) or user (u/name) crawl target
//   - Post: a submission as delivered by the listing endpoints
//   - Comment: one node of a reply tree, including removed/deleted and
//     pending-expansion placeholders
//   - Item / Page: the unified listing stream consumed by the walker
//   - CrawlJob / CrawlReport: one user-initiated run and its final summary
//
// Models live in their own package to avoid circular dependencies: the
// walker, forest builder, exporters, and report writers all share these
// types. All of them serialize to JSON for export and checkpoint storage.
package model
