package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/webcrawler/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty shows sections that have nothing to list.
	showEmpty bool

	// verbose lists every downloaded page.
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

// WithVerbose lists every downloaded page, not just the counts.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeHosts(&sb, report)
	w.writeDownloaded(&sb, report)
	w.writeFailures(&sb, report)
	w.writeComparison(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                          CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:        %s\n", report.Seed)
	fmt.Fprintf(sb, "Depth:       %d\n", report.Depth)
	fmt.Fprintf(sb, "Started:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:    %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Downloaded:  %d\n", len(report.Downloaded))
	fmt.Fprintf(sb, "Failed:      %d\n", len(report.Failures))
	fmt.Fprintf(sb, "Status:      %s\n", status(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, report *model.CrawlReport) {
	hosts := report.HostSummaries()
	if len(hosts) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "HOSTS")
	if len(hosts) == 0 {
		sb.WriteString("  No hosts reached\n\n")
		return
	}
	fmt.Fprintf(sb, "  %-40s %10s %8s\n", "HOST", "DOWNLOADED", "FAILED")
	for _, h := range hosts {
		fmt.Fprintf(sb, "  %-40s %10d %8d\n", h.Host, h.Downloaded, h.Failed)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDownloaded(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose {
		return
	}
	if len(report.Downloaded) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "DOWNLOADED")
	if len(report.Downloaded) == 0 {
		sb.WriteString("  No pages downloaded\n\n")
		return
	}
	for _, address := range report.Downloaded {
		fmt.Fprintf(sb, "  [+] %s\n", address)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "FAILURES")
	if len(report.Failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [!] %s\n", f.URL)
		if f.StatusCode != 0 {
			fmt.Fprintf(sb, "      Status: %d\n", f.StatusCode)
		}
		fmt.Fprintf(sb, "      Error:  %s\n", f.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeComparison(sb *strings.Builder, report *model.CrawlReport) {
	c := report.Comparison
	if c == nil {
		return
	}

	w.writeSection(sb, "CHANGES SINCE PREVIOUS CRAWL")
	fmt.Fprintf(sb, "  Previous run #%d at %s\n\n", c.PreviousID, c.PreviousAt.Format("2006-01-02 15:04:05 MST"))
	if !c.HasChanges() {
		sb.WriteString("  No changes\n\n")
		return
	}

	lists := []struct {
		marker string
		title  string
		urls   []string
	}{
		{"+", "New pages", c.NewPages},
		{"-", "Missing pages", c.MissingPages},
		{"!", "New failures", c.NewFailures},
		{"*", "Recovered pages", c.RecoveredPages},
	}
	for _, l := range lists {
		if len(l.urls) == 0 {
			continue
		}
		fmt.Fprintf(sb, "  %s (%d)\n", l.title, len(l.urls))
		for _, u := range l.urls {
			fmt.Fprintf(sb, "    [%s] %s\n", l.marker, u)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webcrawler\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
