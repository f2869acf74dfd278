package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webcrawler/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown, built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeHosts(md, report)
	w.writeFailures(md, report)
	w.writeComparison(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + report.Seed + "`"},
		{"Depth", strconv.Itoa(report.Depth)},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if d := report.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows, []string{"Status", statusIcon(report) + " " + status(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusIcon(report *model.CrawlReport) string {
	switch {
	case report.Interrupted:
		return "⚠️"
	case report.ErrorMessage != "":
		return "❌"
	default:
		return "✅"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Pages"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(len(report.Downloaded))},
			{"Failed", strconv.Itoa(len(report.Failures))},
			{"**Total**", "**" + strconv.Itoa(report.Total()) + "**"},
		},
	})
	md.PlainText("")

	if report.Total() > 0 {
		w.writePieChart(md, report)
	}

	switch {
	case report.Interrupted:
		md.Warningf("The crawl was interrupted. %d page(s) had an outcome before it stopped.", report.Total())
	case len(report.Failures) > 0:
		md.Importantf("%d page(s) could not be downloaded.", len(report.Failures))
	default:
		md.Tip("Every reachable page was downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)
	if n := len(report.Downloaded); n > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(n))
	}
	if n := len(report.Failures); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, report *model.CrawlReport) {
	hosts := report.HostSummaries()
	if len(hosts) == 0 {
		return
	}

	md.H2("Hosts")
	md.PlainText("")

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{"`" + h.Host + "`", strconv.Itoa(h.Downloaded), strconv.Itoa(h.Failed)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Downloaded", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if len(report.Failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		rows[i] = []string{
			truncateString(f.URL, 80),
			statusCode(f.StatusCode),
			truncateString(f.Error, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeComparison(md *markdown.Markdown, report *model.CrawlReport) {
	c := report.Comparison
	if c == nil {
		return
	}

	md.H2("Changes Since Previous Crawl")
	md.PlainText("")
	md.PlainTextf("Compared with run #%d from %s.", c.PreviousID, c.PreviousAt.Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")

	if !c.HasChanges() {
		md.Note("No changes since the previous crawl.")
		md.PlainText("")
		return
	}

	sections := []struct {
		title string
		urls  []string
	}{
		{"New Pages", c.NewPages},
		{"Missing Pages", c.MissingPages},
		{"New Failures", c.NewFailures},
		{"Recovered Pages", c.RecoveredPages},
	}
	for _, s := range sections {
		if len(s.urls) == 0 {
			continue
		}
		md.H3(s.title + " (" + strconv.Itoa(len(s.urls)) + ")")
		md.PlainText("")
		md.BulletList(s.urls...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by webcrawler*")
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
