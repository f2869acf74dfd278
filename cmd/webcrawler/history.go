package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/model"
)

// errRunNotFound is returned when the requested run is not in the database.
var errRunNotFound = errors.New("crawl run not found")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "Show stored crawls and what changed between them",
		Long: `History reads the crawl history database.

Without flags it shows the latest crawl of the seed together with the changes
since the crawl before it:
- New pages that were downloaded for the first time
- Missing pages that were downloaded before but not any more
- New failures and recovered pages

Examples:
  # Show the latest crawl of a seed and what changed
  webcrawler history https://example.com/

  # List all stored crawls of a seed
  webcrawler history --list https://example.com/

  # Show a specific stored crawl
  webcrawler history --id 12 https://example.com/

  # List all seeds in the database
  webcrawler history --list-seeds`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List stored crawls of the seed")
	cmd.Flags().BoolP("list-seeds", "L", false,
		"List all seeds in the database")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the crawl with this ID (use --list to see IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	listSeeds, err := flags.GetBool("list-seeds")
	if err != nil {
		return err
	}
	list, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	runID, err := flags.GetInt64("id")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	// Validate before opening the database so bad input never creates it.
	var seed string
	if !listSeeds {
		if len(args) == 0 {
			return errors.New("seed is required (use --list-seeds to see stored seeds)")
		}
		if seed, err = normalizeSeed(args[0]); err != nil {
			return err
		}
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawl history yet. Use 'webcrawler crawl <seed>' to crawl a site.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listSeeds:
		return printSeeds(ctx, db, out)
	case list:
		return printHistory(ctx, db, out, seed)
	default:
		r, err := loadRunWithComparison(ctx, db, seed, runID)
		if err != nil {
			return err
		}
		_, err = newReportWriter(jsonOutput, markdownOutput, out).Write(r)
		return err
	}
}

func printSeeds(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled seeds found in the database.")
		return nil
	}

	fmt.Fprintf(out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'webcrawler history --list <seed>' to see the crawls of a seed.")
	return nil
}

func printHistory(ctx context.Context, db *database.CrawlDB, out io.Writer, seed string) error {
	history, err := db.GetCrawlHistory(ctx, seed)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", seed)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", seed, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %5s  %10s  %6s  %10s\n", "ID", "Date", "Depth", "Downloaded", "Failed", "Duration")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 68))
	for _, run := range history {
		duration := "-"
		if d := run.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %5d  %10d  %6d  %10s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Depth,
			run.Downloaded,
			run.Failed,
			duration,
		)
	}
	return nil
}

// loadRunWithComparison loads the run with runID (or the latest run when
// runID is 0) and compares it with the run stored before it.
func loadRunWithComparison(ctx context.Context, db *database.CrawlDB, seed string, runID int64) (*model.CrawlReport, error) {
	var (
		r   *model.CrawlReport
		err error
	)
	if runID != 0 {
		r, err = db.GetCrawlReportByID(ctx, runID)
	} else {
		r, err = db.GetLatestCrawlReport(ctx, seed)
	}
	if err != nil {
		return nil, err
	}
	if r == nil || r.Seed != seed {
		return nil, fmt.Errorf("%w for %s", errRunNotFound, seed)
	}

	previous, err := db.GetPreviousCrawlReport(ctx, seed, r.ID)
	if err != nil {
		return nil, err
	}
	r.Comparison = nil
	if previous != nil {
		r.Comparison = model.Compare(previous, r)
	}
	return r, nil
}
