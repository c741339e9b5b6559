package report

import (
	"io"
	"sort"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Writer formats a crawl report and writes it to a destination.
// Implementations exist for terminal text, JSON, and Markdown output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes a report to multiple Writers in order.
// A run uses it to print the terminal summary and write report files
// with a single call. It stops on the first error encountered.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// postTypeCount is one entry of the post-type distribution.
type postTypeCount struct {
	Type  string
	Count int
}

// sortedPostTypes flattens the report's post-type map into a stable
// order: highest count first, ties broken by type name. Map iteration
// order would otherwise leak into the rendered output.
func sortedPostTypes(report *model.CrawlReport) []postTypeCount {
	if len(report.PostTypes) == 0 {
		return nil
	}
	counts := make([]postTypeCount, 0, len(report.PostTypes))
	for typ, n := range report.PostTypes {
		counts = append(counts, postTypeCount{Type: typ, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Type < counts[j].Type
	})
	return counts
}
