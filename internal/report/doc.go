// Package report renders crawl job summaries in multiple formats.
//
// Three writers share the Writer interface: SimpleWriter produces the
// plain-text summary printed after every run, JSONWriter emits the
// report for tool integration, and MarkdownWriter builds a shareable
// document with a post-type distribution chart. MultiWriter fans a
// report out to several destinations, which is how a run writes its
// terminal summary and report files in one call.
//
// Writers only format: counters are collected by the crawl controller
// and arrive frozen in a model.CrawlReport.
package report
