package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/database"
	crawlerlog "github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
	"github.com/nao1215/webcrawler/internal/pipeline"
	"github.com/nao1215/webcrawler/internal/report"
	"github.com/nao1215/webcrawler/internal/transport"
)

// errSeedsFailed is returned when at least one seed could not be crawled.
var errSeedsFailed = errors.New("some seeds failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed...]",
		Short: "Crawl one or more seed addresses",
		Long: `Crawl downloads each seed and every page reachable from it within the
given depth. Depth 1 fetches only the seed; depth 2 also fetches the pages it
links to, and so on.

Every address is fetched at most once per seed. Failed pages are reported with
their cause and never stop the crawl. Press Ctrl+C to stop early: pages that
finished before the interrupt are still reported.

Seeds without a scheme are fetched over https.

Examples:
  # Crawl a site two levels deep
  webcrawler crawl https://example.com/

  # Crawl several sites, three levels deep, at most 2 requests per host
  webcrawler crawl -d 3 -p 2 example.com example.org

  # Crawl through a SOCKS5 proxy (e.g. a local Tor client)
  webcrawler crawl --proxy 127.0.0.1:9050 http://example.onion/

  # Crawl through an embedded Tor daemon
  webcrawler crawl --tor http://example.onion/

  # Write a Markdown report to a file
  webcrawler crawl -m -o report.md https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl shape
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum link depth (1 fetches only the seed)")
	cmd.Flags().IntP("downloaders", "D", config.DefaultDownloaders,
		"Number of concurrent downloads across all hosts")
	cmd.Flags().IntP("extractors", "x", config.DefaultExtractors,
		"Number of concurrent link extractions")
	cmd.Flags().IntP("per-host", "p", config.DefaultPerHost,
		"Maximum concurrent downloads per host")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// HTTP
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().Duration("shutdown-grace", config.DefaultShutdownGrace,
		"How long to wait for queued work when shutting down")

	// Proxy
	cmd.Flags().StringP("proxy", "e", "",
		"Route requests through the SOCKS5 proxy at host:port")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawler in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History
	cmd.Flags().Bool("no-db", false,
		"Do not store the crawl in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := crawlerlog.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Downloaders, err = flags.GetInt("downloaders"); err != nil {
		return nil, err
	}
	if cfg.Extractors, err = flags.GetInt("extractors"); err != nil {
		return nil, err
	}
	if cfg.PerHost, err = flags.GetInt("per-host"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = flags.GetDuration("shutdown-grace"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseEmbeddedTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Seeds = make([]string, 0, len(args))
	for _, arg := range args {
		seed, err := normalizeSeed(arg)
		if err != nil {
			return nil, err
		}
		cfg.Seeds = append(cfg.Seeds, seed)
	}
	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A file named explicitly must
// exist; otherwise a missing file yields empty settings.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cf, nil
}

// normalizeSeed adds https:// to a seed without a scheme and checks that a
// host can be derived from it.
func normalizeSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}
	if _, err := crawler.Origin(seed); err != nil {
		return "", fmt.Errorf("invalid seed: %w", err)
	}
	return seed, nil
}

// runCrawl crawls every seed of cfg and writes one report per seed to out
// (or cfg.ReportFile).
func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (err error) {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"depth", cfg.Depth,
		"batch", cfg.BatchSize,
		"save_to_db", cfg.SaveToDB,
	)

	var store pipeline.HistoryStore
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Info("database opened", "path", db.Path())
	}

	clientOpts, cleanup, err := proxyOptions(ctx, cfg, out, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	clientOpts = append(clientOpts,
		transport.WithSiteHeaders(siteHeaders(cfg)),
		transport.WithMaxIdleConnsPerHost(cfg.PerHost),
	)
	client, err := transport.NewClient(cfg.Timeout, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	c, err := crawler.New(fetcher, cfg.Downloaders, cfg.Extractors, cfg.PerHost,
		crawler.WithLogger(logger),
		crawler.WithShutdownGrace(cfg.ShutdownGrace),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	defer c.Close()

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOutput(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", cerr)
		}
	}()
	writer := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, output)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(c, cfg, store, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	start := time.Now()
	var (
		mu     sync.Mutex
		failed int
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Seeds, func(r *model.CrawlReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if r.Error != nil {
			failed++
		}
		if _, werr := writer.Write(r); werr != nil {
			logger.Error("failed to write report", "seed", r.Seed, "error", werr)
		}
	})

	stats := c.Stats()
	logger.Info("crawl complete",
		"seeds", len(cfg.Seeds),
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", crawler.ErrInterrupted, ctx.Err())
	}
	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSeedsFailed, failed, len(cfg.Seeds))
	}
	return nil
}

// proxyOptions returns the client options for the configured proxy and a
// cleanup function that stops anything started here.
func proxyOptions(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) ([]transport.ClientOption, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		if err := transport.CheckProxy(ctx, cfg.ProxyAddress).Err(); err != nil {
			return nil, noop, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, err)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return []transport.ClientOption{transport.WithProxy(cfg.ProxyAddress)}, noop, nil

	case cfg.UseEmbeddedTor:
		fmt.Fprintln(out, "Starting embedded Tor daemon...")
		fmt.Fprintf(out, "This may take a few minutes while Tor bootstraps.\n\n")

		tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := tor.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stopTor := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		opt, err := tor.ClientOption()
		if err != nil {
			stopTor()
			return nil, noop, err
		}
		if err := transport.CheckProxy(ctx, tor.SocksAddr()).Err(); err != nil {
			stopTor()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", err)
		}

		logger.Info("embedded Tor daemon started",
			"socks_addr", tor.SocksAddr(),
			"control_addr", tor.ControlAddr(),
		)
		return []transport.ClientOption{opt}, stopTor, nil

	default:
		return nil, noop, nil
	}
}

// siteHeaders collects the cookie and headers of every configured host and
// every seed host, with defaults merged in.
func siteHeaders(cfg *config.Config) map[string]transport.SiteHeaders {
	hosts := make([]string, 0)
	if cfg.SiteConfigs != nil {
		hosts = append(hosts, cfg.SiteConfigs.Hosts()...)
	}
	for _, seed := range cfg.Seeds {
		if host, err := crawler.Origin(seed); err == nil {
			hosts = append(hosts, host)
		}
	}

	sites := make(map[string]transport.SiteHeaders)
	for _, host := range hosts {
		sc := cfg.SiteConfig(host)
		if sc.Cookie == "" && len(sc.Headers) == 0 {
			continue
		}
		sites[host] = transport.SiteHeaders{Cookie: sc.Cookie, Headers: sc.Headers}
	}
	return sites
}

// openReportOutput returns the report destination: path when set, or
// fallback. The returned close function must be called when done.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// 0600: reports list every crawled address.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter picks the report format from the flags.
func newReportWriter(jsonReport, markdownReport bool, output io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output)
	}
}
