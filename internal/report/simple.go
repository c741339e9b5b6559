package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Plain ASCII formatting keeps the output pipeable and readable in any
// terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no data are shown.
	showEmpty bool

	// verbose enables transport diagnostics in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose adds retry, throttle, and duplicate counters to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeResults(&sb, report)
	w.writeDegraded(&sb, report)
	w.writeMedia(&sb, report)
	w.writePostTypes(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with job information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       REDDITSCAN CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Job ID:    %s\n", report.JobID))
	sb.WriteString(fmt.Sprintf("Target:    %s\n", report.Target))
	sb.WriteString(fmt.Sprintf("Mode:      %s\n", report.Mode))
	sb.WriteString(fmt.Sprintf("Format:    %s\n", report.Format))
	if report.DryRun {
		sb.WriteString("Dry Run:   yes (export discarded)\n")
	}
	sb.WriteString(fmt.Sprintf("Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", report.Duration()))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", report.OutcomeLine()))
	sb.WriteString("\n")
}

// writeResults writes the crawl counter section.
func (w *SimpleWriter) writeResults(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CRAWL RESULTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Pages fetched:      %d\n", report.PagesFetched))
	sb.WriteString(fmt.Sprintf("  Posts exported:     %d\n", report.PostsExported))
	sb.WriteString(fmt.Sprintf("  Comments exported:  %d\n", report.CommentsExported))

	if w.verbose {
		sb.WriteString(fmt.Sprintf("  Duplicates skipped: %d\n", report.Duplicates))
		sb.WriteString(fmt.Sprintf("  Retries:            %d\n", report.Retries))
		sb.WriteString(fmt.Sprintf("  Throttle episodes:  %d\n", report.ThrottleEpisodes))
	}
	sb.WriteString("\n")
}

// writeDegraded writes the section covering abandoned and skipped data.
func (w *SimpleWriter) writeDegraded(sb *strings.Builder, report *model.CrawlReport) {
	if !report.Degraded() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("DEGRADED DATA\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Subtrees abandoned: %d\n", report.SubtreesAbandoned))
	sb.WriteString(fmt.Sprintf("  Posts skipped:      %d\n", report.PostsSkipped))
	if report.ListingTruncated {
		sb.WriteString("  Listing truncated:  yes\n")
	}
	sb.WriteString("\n")
}

// writeMedia writes the media download section.
func (w *SimpleWriter) writeMedia(sb *strings.Builder, report *model.CrawlReport) {
	if report.MediaSaved == 0 && report.MediaFailed == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("MEDIA DOWNLOADS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Saved:  %d\n", report.MediaSaved))
	sb.WriteString(fmt.Sprintf("  Failed: %d\n", report.MediaFailed))
	sb.WriteString("\n")
}

// writePostTypes writes the post-type distribution section.
func (w *SimpleWriter) writePostTypes(sb *strings.Builder, report *model.CrawlReport) {
	counts := sortedPostTypes(report)
	if len(counts) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("POST TYPES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(counts) == 0 {
		sb.WriteString("  No posts exported\n")
	} else {
		for _, c := range counts {
			sb.WriteString(fmt.Sprintf("  %-9s %d\n", c.Type+":", c.Count))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by redditscan\n")
	sb.WriteString("https://github.com/ji-mi-alice/reddit-universal-scraper\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
