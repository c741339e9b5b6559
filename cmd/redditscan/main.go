// Package main provides the entry point for the redditscan CLI.
//
// redditscan collects posts, comment trees, and media from Reddit's
// public JSON endpoints at a polite, rate-governed pace. Results are
// exported as CSV or JSONL trees and every job is recorded in a local
// history database so interrupted crawls can be resumed.
//
// Usage:
//
//	redditscan crawl r/golang
//	redditscan crawl --mode full u/spez
//
// See --help for all available options.
package main

// main is the entry point for redditscan.
func main() {
	Execute()
}
