package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawler"

	// DefaultDepth fetches the seed and the pages it links to.
	DefaultDepth = 2

	// DefaultDownloaders is the size of the download pool. Downloads spend
	// most of their time waiting on the network, so this is larger than the
	// extraction pool.
	DefaultDownloaders = 16

	// DefaultExtractors is the size of the link extraction pool.
	DefaultExtractors = 8

	// DefaultPerHost caps concurrent requests to a single host.
	// Four matches what most browsers open per origin.
	DefaultPerHost = 4

	// DefaultTimeout bounds a single HTTP request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultShutdownGrace is how long closing the crawler waits for queued work.
	DefaultShutdownGrace = 10 * time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently.
	// All seeds share the crawler pools, so this mostly bounds how many
	// reports are in memory at once.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "webcrawler/1.0 (+https://github.com/nao1215/webcrawler)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for a crawl.
// It is populated from CLI flags and the configuration file and passed
// through the application rather than kept in global state.
type Config struct {
	// Depth is the maximum number of link hops plus one. 1 fetches only the seed.
	Depth int

	// Downloaders is the number of concurrent fetches across all hosts.
	Downloaders int

	// Extractors is the number of concurrent link extractions.
	Extractors int

	// PerHost is the number of concurrent fetches allowed per host.
	PerHost int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// ShutdownGrace is how long closing the crawler waits for queued work.
	ShutdownGrace time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Larger bodies are truncated.
	MaxBodySize int64

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// UseEmbeddedTor starts a private Tor daemon and routes requests through it.
	// Mutually exclusive with ProxyAddress.
	UseEmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .webcrawler is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the configuration file.
	SiteConfigs *File

	// JSONReport selects JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// DBDir is the directory of the crawl history database.
	// Defaults to the XDG data directory (~/.local/share/webcrawler on Linux).
	DBDir string

	// SaveToDB stores every crawl report in the history database.
	SaveToDB bool

	// Seeds are the addresses to start crawling from.
	Seeds []string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		Downloaders:       DefaultDownloaders,
		Extractors:        DefaultExtractors,
		PerHost:           DefaultPerHost,
		Timeout:           DefaultTimeout,
		ShutdownGrace:     DefaultShutdownGrace,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/webcrawler
// On macOS: ~/Library/Application Support/webcrawler
// On Windows: %LOCALAPPDATA%\webcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the crawler.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
//
// Design decision: We validate once after CLI parsing rather than at each
// point of use, so a bad flag fails before any network traffic.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.Depth < 1 {
		return ErrInvalidDepth
	}
	if c.Downloaders <= 0 || c.Extractors <= 0 || c.PerHost <= 0 {
		return ErrInvalidPoolSize
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ShutdownGrace < 0 {
		return ErrInvalidShutdownGrace
	}
	if c.UseEmbeddedTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	return nil
}

// SiteConfig returns the merged per-site settings for host.
// Without a configuration file the zero SiteConfig is returned.
func (c *Config) SiteConfig(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// DepthFor returns the crawl depth for host, honouring a per-site override.
func (c *Config) DepthFor(host string) int {
	if d := c.SiteConfig(host).Depth; d > 0 {
		return d
	}
	return c.Depth
}
