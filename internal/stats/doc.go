// Package stats produces community statistics snapshots.
//
// A snapshot has two halves. The Collector fetches target metadata
// (about, rules, moderators, flairs) through the rate-governed client
// and assembles a TargetStats document saved as subreddit_stats.json.
// The Analyzer derives an ActivityStats summary from crawled posts:
// counts by post type and flair, the most active authors, a
// posting-hour histogram, and a best-effort language distribution.
//
// Only the about document is required; rules, moderators, and flairs
// are optional extras that some communities disable, so their fetch
// failures degrade to empty lists instead of failing the snapshot.
package stats
