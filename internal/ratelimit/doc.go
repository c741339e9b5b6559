// Package ratelimit implements the token-bucket gate that every outbound
// fetch must pass through.
//
// The gate wraps golang.org/x/time/rate with two additions the upstream
// limiter does not provide: a throttle penalty (an upstream 429 drains the
// bucket and suppresses all acquisition until a resume time) and episode
// counters for the final job report. A single Gate instance is shared by
// all fetch workers of a job, so aggregate throughput obeys one budget
// regardless of concurrency.
package ratelimit
