package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawler/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	report := model.NewCrawlReport("https://example.com/", 2)
	report.StartedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(1500 * time.Millisecond)
	report.Downloaded = []string{
		"https://example.com/",
		"https://example.com/about",
		"https://docs.example.org/",
	}
	report.Failures = []model.Failure{
		{URL: "https://example.com/missing", Error: "unexpected status 404", StatusCode: 404},
		{URL: "https://down.example.net/", Error: "connection refused"},
	}
	return report
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("returned %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"CRAWL REPORT",
			"Seed:        https://example.com/",
			"Downloaded:  3",
			"Failed:      2",
			"Status:      Complete",
			"Duration:    1.5s",
			"HOSTS",
			"example.com",
			"FAILURES",
			"[!] https://example.com/missing",
			"Status: 404",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "DOWNLOADED\n") {
			t.Error("downloaded list should only appear in verbose mode")
		}
	})

	t.Run("verbose lists downloaded pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[+] https://example.com/about") {
			t.Error("expected downloaded page in verbose output")
		}
	})

	t.Run("show empty sections", func(t *testing.T) {
		t.Parallel()

		report := model.NewCrawlReport("https://example.com/", 1)
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No failures") {
			t.Error("expected empty failures section")
		}
	})

	t.Run("interrupted status", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Interrupted = true
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Interrupted (partial results)") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("comparison section", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Comparison = &model.Comparison{
			PreviousID:   7,
			PreviousAt:   report.StartedAt.Add(-24 * time.Hour),
			NewPages:     []string{"https://example.com/about"},
			MissingPages: []string{"https://example.com/old"},
		}
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"CHANGES SINCE PREVIOUS CRAWL", "run #7", "[+] https://example.com/about", "[-] https://example.com/old"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output round trips", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("compact output should be a single line")
		}

		var got model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Seed != "https://example.com/" || len(got.Failures) != 2 {
			t.Errorf("unexpected report: %+v", got)
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"seed\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("full writer adds version and hosts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got struct {
			Version string              `json:"version"`
			Hosts   []model.HostSummary `json:"hosts"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v1.2.3" {
			t.Errorf("version = %q", got.Version)
		}
		if len(got.Hosts) != 3 {
			t.Errorf("expected 3 hosts, got %+v", got.Hosts)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"## Summary",
			"## Hosts",
			"## Failures",
			"```mermaid",
			"Downloaded",
			"https://example.com/missing",
			"404",
			"[!IMPORTANT]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("clean crawl gets a tip", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Failures = nil
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No failures.") || !strings.Contains(buf.String(), "[!TIP]") {
			t.Error("expected no-failure text and tip")
		}
	})

	t.Run("comparison", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Comparison = &model.Comparison{
			PreviousID:     3,
			RecoveredPages: []string{"https://example.com/about"},
		}
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "### Recovered Pages (1)") {
			t.Error("expected recovered pages section")
		}
	})
}

// failingWriter returns err from every Write.
type failingWriter struct {
	err error
}

func (f failingWriter) Write(*model.CrawlReport) (int, error) {
	return 0, f.err
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		n, err := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js)).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("returned %d bytes, wrote %d", n, text.Len()+js.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("disk full")
		var buf bytes.Buffer
		_, err := NewMultiWriter(failingWriter{err: wantErr}, NewSimpleWriter(&buf)).Write(createTestReport())
		if !errors.Is(err, wantErr) {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
		if buf.Len() != 0 {
			t.Error("second writer should not run")
		}
	})
}

func TestWriteAll(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reports := []*model.CrawlReport{createTestReport(), nil, createTestReport()}
	if _, err := WriteAll(NewJSONWriter(&buf), reports); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("expected 2 documents, got %d", got)
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
