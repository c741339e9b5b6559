package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/stats"
)

// MarkdownWriter outputs reports in Markdown format for documentation
// and sharing. It uses the nao1215/markdown library for fluent,
// type-safe generation including tables, GitHub-flavored alerts, and
// mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeOutcomeAlert(md, report)
	w.writeResults(md, report)
	w.writePostTypes(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with job information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Job ID", "`" + report.JobID + "`"},
		{"Target", "`" + report.Target + "`"},
		{"Mode", string(report.Mode)},
		{"Format", string(report.Format)},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", report.Duration().String()},
		{"Status", w.getStatusText(report)},
	}
	if report.DryRun {
		rows = append(rows, []string{"Dry Run", "yes (export discarded)"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on the report outcome.
func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	switch report.Outcome {
	case model.OutcomeAborted:
		if report.Error != "" {
			return "❌ Aborted - " + truncateString(report.Error, 60)
		}
		return "❌ Aborted"
	case model.OutcomePartial:
		return "⚠️ Partial"
	default:
		return "✅ Complete"
	}
}

// writeOutcomeAlert writes a GitHub alert matching the report outcome.
func (w *MarkdownWriter) writeOutcomeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch report.Outcome {
	case model.OutcomeAborted:
		md.Cautionf(
			"Crawl %s. Output written before the abort is preserved.",
			report.OutcomeLine(),
		)
	case model.OutcomePartial:
		md.Warningf(
			"Degraded result: %d comment subtree(s) abandoned, %d post(s) skipped after retry exhaustion.",
			report.SubtreesAbandoned, report.PostsSkipped,
		)
	default:
		md.Tip("All requested records were collected in full.")
	}
	md.PlainText("")
}

// writeResults writes the crawl counter table.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Results")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages fetched", strconv.Itoa(report.PagesFetched)},
			{"Posts exported", strconv.Itoa(report.PostsExported)},
			{"Comments exported", strconv.Itoa(report.CommentsExported)},
			{"Duplicates skipped", strconv.Itoa(report.Duplicates)},
			{"Retries", strconv.Itoa(report.Retries)},
			{"Throttle episodes", strconv.Itoa(report.ThrottleEpisodes)},
			{"Media saved", strconv.Itoa(report.MediaSaved)},
			{"Media failed", strconv.Itoa(report.MediaFailed)},
		},
	})
	md.PlainText("")
}

// writePostTypes writes the post-type distribution with a pie chart.
func (w *MarkdownWriter) writePostTypes(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Post Types")
	md.PlainText("")

	counts := sortedPostTypes(report)
	if len(counts) == 0 {
		md.PlainText("No posts exported.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Post Type Distribution"),
		piechart.WithShowData(true),
	)
	for _, c := range counts {
		chart.LabelAndIntValue(stats.DisplayLabel(c.Type), uint64(c.Count))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [redditscan](https://github.com/ji-mi-alice/reddit-universal-scraper)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
