package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/model"
)

// SeedCrawler crawls from a seed address. *crawler.Crawler implements it.
type SeedCrawler interface {
	Crawl(ctx context.Context, seed string, depth int, opts ...crawler.CrawlOption) (*crawler.Result, error)
}

// CrawlStep crawls the report's seed and records the outcome.
type CrawlStep struct {
	crawler SeedCrawler
	cfg     *config.Config
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlConfig supplies the depth and per-site link patterns.
// Without it the step uses config.NewConfig().
func WithCrawlConfig(cfg *config.Config) CrawlStepOption {
	return func(s *CrawlStep) {
		s.cfg = cfg
	}
}

// WithCrawlLogger sets the step logger.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step backed by c.
func NewCrawlStep(c SeedCrawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{crawler: c}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		s.cfg = config.NewConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.Seed. A zero report.Depth is replaced by the configured
// depth for the seed's host.
//
// An interrupted crawl is not an error of the step: the partial result is
// recorded and report.Interrupted is set.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	host := seedHost(report.Seed)
	if report.Depth == 0 {
		report.Depth = s.cfg.DepthFor(host)
	}

	var opts []crawler.CrawlOption
	site := s.cfg.SiteConfig(host)
	if filter := crawler.NewPatternFilter(site.IgnorePatterns, site.FollowPatterns); filter != nil {
		opts = append(opts, crawler.WithLinkFilter(filter))
	}

	result, err := s.crawler.Crawl(ctx, report.Seed, report.Depth, opts...)
	switch {
	case errors.Is(err, crawler.ErrInterrupted):
		report.Interrupted = true
		s.logger.Warn("crawl interrupted, keeping partial result",
			"seed", report.Seed,
			"error", err,
		)
	case err != nil:
		return fmt.Errorf("crawl %s: %w", report.Seed, err)
	}

	applyResult(report, result)
	report.FinishedAt = time.Now()
	return nil
}

// applyResult copies a crawl result into report, sorting failures by URL.
func applyResult(report *model.CrawlReport, result *crawler.Result) {
	if result == nil {
		return
	}
	report.Downloaded = append(make([]string, 0, len(result.Downloaded)), result.Downloaded...)

	failures := make([]model.Failure, 0, len(result.Errors))
	for address, err := range result.Errors {
		f := model.Failure{URL: address, Error: err.Error()}
		var statusErr *crawler.HTTPStatusError
		if errors.As(err, &statusErr) {
			f.StatusCode = statusErr.StatusCode
		}
		failures = append(failures, f)
	}
	slices.SortFunc(failures, func(a, b model.Failure) int {
		return cmp.Compare(a.URL, b.URL)
	})
	report.Failures = failures
}

// seedHost returns the host of seed, or "" if it cannot be parsed.
func seedHost(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// HistoryStore loads and saves crawl reports. *database.CrawlDB implements it.
type HistoryStore interface {
	GetLatestCrawlReport(ctx context.Context, seed string) (*model.CrawlReport, error)
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error
}

// HistoryStep compares the report with the previous run of the same seed
// and saves it.
type HistoryStep struct {
	store  HistoryStore
	logger *slog.Logger
}

// NewHistoryStep creates a history step backed by store.
func NewHistoryStep(store HistoryStore, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do fills report.Comparison and saves the report.
// Interrupted reports are neither compared nor saved.
func (s *HistoryStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.Interrupted {
		s.logger.Debug("skipping history for interrupted crawl", "seed", report.Seed)
		return nil
	}

	previous, err := s.store.GetLatestCrawlReport(ctx, report.Seed)
	if err != nil {
		return fmt.Errorf("failed to load previous crawl: %w", err)
	}
	if previous != nil {
		report.Comparison = model.Compare(previous, report)
		s.logger.Debug("compared with previous crawl",
			"seed", report.Seed,
			"previous_id", previous.ID,
			"changed", report.Comparison.HasChanges(),
		)
	}

	if err := s.store.SaveCrawlReport(ctx, report); err != nil {
		return fmt.Errorf("failed to save crawl: %w", err)
	}
	return nil
}

// DefaultPipeline builds the crawl pipeline: crawl, then history when store
// is not nil.
func DefaultPipeline(c SeedCrawler, cfg *config.Config, store HistoryStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := New(WithLogger(logger))
	p.AddStep(NewCrawlStep(c, WithCrawlConfig(cfg), WithCrawlLogger(logger)))
	if store != nil {
		p.AddStep(NewHistoryStep(store, logger))
	}
	return p
}
