// Package reddit implements the crawl transport over Reddit's public
// JSON endpoints.
//
// Every listing surface the crawler reads has a JSON twin: appending
// .json to a subreddit, user, or thread path returns the same data the
// HTML page renders, wrapped in Reddit's kind/data envelope. The Client
// decodes those envelopes into the flat domain types the engine
// consumes, flattening nested comment trees into delivery-ordered
// fragment streams with "more" placeholders preserved.
//
// The Client performs single attempts only and classifies every
// failure into the throttled/transient/permanent/cancelled taxonomy;
// retries, backoff, and rate governance belong to the fetch scheduler
// that wraps it. No authentication is used, matching the public
// surfaces the tool crawls. An optional SOCKS5 proxy covers
// crawling from networks where the site is unreachable directly.
package reddit
