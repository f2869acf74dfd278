package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawler/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "webcrawler.db"

// Page outcomes stored in crawl_pages.status.
const (
	PageStatusDownloaded = "downloaded"
	PageStatusFailed     = "failed"
)

// CrawlDB stores the history of crawl runs in SQLite.
//
// Design decision: Every run is stored twice: as the report JSON, which is
// what callers load, and as one row per page, which keeps per-page queries
// possible without decoding reports.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the crawl history database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		interrupted INTEGER NOT NULL DEFAULT 0,
		downloaded_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_runs_seed ON crawl_runs(seed, started_at);

	CREATE TABLE IF NOT EXISTS crawl_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		status_code INTEGER,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_pages_run ON crawl_pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_crawl_pages_url ON crawl_pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores report and its pages in one transaction and sets report.ID.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is more useful
		}
	}()

	var finishedAt sql.NullString
	if !report.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: formatTimestamp(report.FinishedAt), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (seed, depth, started_at, finished_at, interrupted,
		downloaded_count, failed_count, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Seed,
		report.Depth,
		formatTimestamp(report.StartedAt),
		finishedAt,
		report.Interrupted,
		len(report.Downloaded),
		len(report.Failures),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (run_id, url, status, error, status_code, position)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	position := 0
	for _, address := range report.Downloaded {
		if _, err = stmt.ExecContext(ctx, runID, address, PageStatusDownloaded, nil, nil, position); err != nil {
			return fmt.Errorf("failed to save page %s: %w", address, err)
		}
		position++
	}
	for _, f := range report.Failures {
		var code sql.NullInt64
		if f.StatusCode != 0 {
			code = sql.NullInt64{Int64: int64(f.StatusCode), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, runID, f.URL, PageStatusFailed, f.Error, code, position); err != nil {
			return fmt.Errorf("failed to save page %s: %w", f.URL, err)
		}
		position++
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl run: %w", err)
	}

	report.ID = runID
	return nil
}

// GetLatestCrawlReport returns the most recent run of seed, or nil if there is none.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, seed string) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `
	SELECT id, report_json FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1`, seed)
}

// GetPreviousCrawlReport returns the run of seed saved before the run with
// id beforeID, or nil if there is none.
func (cdb *CrawlDB) GetPreviousCrawlReport(ctx context.Context, seed string, beforeID int64) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `
	SELECT id, report_json FROM crawl_runs
	WHERE seed = ? AND id < ?
	ORDER BY id DESC
	LIMIT 1`, seed, beforeID)
}

// GetCrawlReportByID returns the run with the given id, or nil if there is none.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `
	SELECT id, report_json FROM crawl_runs
	WHERE id = ?`, id)
}

func (cdb *CrawlDB) queryReport(ctx context.Context, query string, args ...any) (*model.CrawlReport, error) {
	var (
		id         int64
		reportJSON string
	)
	err := cdb.db.QueryRowContext(ctx, query, args...).Scan(&id, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ID = id
	return &report, nil
}

// ListSeeds returns every seed with at least one stored run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	seeds := make([]string, 0)
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// RunMetadata summarizes a stored run without loading its report.
type RunMetadata struct {
	ID          int64
	Seed        string
	Depth       int
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
	Downloaded  int
	Failed      int
}

// Duration returns how long the run took, or zero if unknown.
func (m RunMetadata) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// GetCrawlHistory returns the runs of seed, newest first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, seed string) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, seed, depth, started_at, finished_at, interrupted, downloaded_count, failed_count
	FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC, id DESC`, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	history := make([]RunMetadata, 0)
	for rows.Next() {
		var (
			meta       RunMetadata
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Seed, &meta.Depth, &startedAt, &finishedAt,
			&meta.Interrupted, &meta.Downloaded, &meta.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}
		history = append(history, meta)
	}
	return history, rows.Err()
}

// PageRecord is one page outcome of a stored run.
type PageRecord struct {
	URL        string
	Status     string
	Error      string
	StatusCode int
}

// GetRunPages returns the page outcomes of a run: downloads in completion
// order, then failures.
func (cdb *CrawlDB) GetRunPages(ctx context.Context, runID int64) ([]PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, status, error, status_code FROM crawl_pages
	WHERE run_id = ?
	ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run pages: %w", err)
	}
	defer rows.Close()

	pages := make([]PageRecord, 0)
	for rows.Next() {
		var (
			p    PageRecord
			msg  sql.NullString
			code sql.NullInt64
		)
		if err := rows.Scan(&p.URL, &p.Status, &msg, &code); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Error = msg.String
		p.StatusCode = int(code.Int64)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeleteRun removes a run and its pages. Deleting a missing run is not an error.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id int64) error {
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run %d: %w", id, err)
	}
	return nil
}

// timestampFormats are the formats SQLite and this package write.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp tries every known format and returns the zero time if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
