// Package report writes crawl reports.
//
// Writers for different output formats:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter and FullJSONWriter: JSON for tools
//   - MarkdownWriter: Markdown with tables and a mermaid pie chart
//
// All writers implement Writer, so the CLI chooses one from its flags and
// MultiWriter can combine them.
package report
