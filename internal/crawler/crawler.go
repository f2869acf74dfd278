package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultShutdownGrace is how long Close waits for queued tasks before
// discarding the ones that have not started.
const DefaultShutdownGrace = 10 * time.Second

// Crawler downloads pages breadth first from a seed address.
//
// It owns two pools that live as long as the Crawler: the fetch stage, whose
// tasks are admitted per origin by HostAdmission, and the extraction stage,
// which turns fetched pages into new addresses. A single Crawler may serve
// several Crawl calls, sequentially or concurrently; the global and per-host
// limits are then shared between them.
type Crawler struct {
	fetcher Fetcher

	downloaders *Pool
	extractors  *Pool
	admission   *HostAdmission

	logger        *slog.Logger
	shutdownGrace time.Duration

	closed    atomic.Bool
	closeOnce sync.Once

	fetched   atomic.Int64
	failed    atomic.Int64
	extracted atomic.Int64
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger used for crawl progress and per-page failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithShutdownGrace sets how long Close waits for queued tasks.
func WithShutdownGrace(d time.Duration) Option {
	return func(c *Crawler) {
		c.shutdownGrace = d
	}
}

// New creates a Crawler that runs at most downloaders fetches and
// extractors link extractions at once, and at most perHost fetches per
// origin.
func New(fetcher Fetcher, downloaders, extractors, perHost int, opts ...Option) (*Crawler, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if downloaders <= 0 || extractors <= 0 || perHost <= 0 {
		return nil, fmt.Errorf("%w: downloaders=%d extractors=%d perHost=%d",
			ErrInvalidPoolSize, downloaders, extractors, perHost)
	}

	downloadPool := NewPool("download", downloaders)
	c := &Crawler{
		fetcher:       fetcher,
		downloaders:   downloadPool,
		extractors:    NewPool("extract", extractors),
		admission:     NewHostAdmission(downloadPool, perHost),
		logger:        slog.Default(),
		shutdownGrace: DefaultShutdownGrace,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// CrawlOption configures a single Crawl call.
type CrawlOption func(*crawlRun)

// WithLinkFilter restricts which discovered links are scheduled.
// Rejected links are not claimed, fetched or reported. The seed is always
// fetched.
func WithLinkFilter(filter LinkFilter) CrawlOption {
	return func(r *crawlRun) {
		r.filter = filter
	}
}

// Crawl downloads seed and every page reachable from it within depth-1 link
// hops, then returns the downloaded addresses and the failures.
//
// depth 1 fetches only the seed. An address is fetched at most once per
// call, at the depth where it was first discovered.
//
// Per-page failures are recorded in the Result and never returned as an
// error. If ctx is done before all work has finished, Crawl returns the
// partial result together with an error wrapping ErrInterrupted; work that
// was already scheduled keeps running on the pools.
func (c *Crawler) Crawl(ctx context.Context, seed string, depth int, opts ...CrawlOption) (*Result, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}

	run := &crawlRun{
		crawler: c,
		ctx:     ctx,
		visited: &visitedSet{},
		pending: newPendingWork(),
		result:  newCollector(),
	}
	for _, opt := range opts {
		opt(run)
	}

	c.logger.Info("crawl started", "seed", seed, "depth", depth)
	start := time.Now()

	run.visited.claim(seed)
	run.scheduleFetch(seed, depth)
	run.pending.arrive()

	if err := run.pending.wait(ctx); err != nil {
		result := run.result.snapshot()
		c.logger.Warn("crawl interrupted",
			"seed", seed,
			"downloaded", len(result.Downloaded),
			"failed", len(result.Errors),
			"pending", run.pending.count(),
			"error", err,
		)
		return result, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	result := run.result.snapshot()
	c.logger.Info("crawl finished",
		"seed", seed,
		"downloaded", len(result.Downloaded),
		"failed", len(result.Errors),
		"visited", run.visited.len(),
		"elapsed", time.Since(start),
	)
	return result, nil
}

// Close shuts down both pools, waiting up to the shutdown grace period for
// queued tasks. It must not be called while a Crawl is outstanding.
// Close is idempotent.
func (c *Crawler) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.downloaders.Close(c.shutdownGrace)
		c.extractors.Close(c.shutdownGrace)
	})
	return nil
}

// Stats contains cumulative counters over the lifetime of a Crawler.
type Stats struct {
	// Fetched is the number of successful fetches.
	Fetched int64

	// Failed is the number of addresses recorded as failures.
	Failed int64

	// Extracted is the number of pages whose links were extracted.
	Extracted int64
}

// Stats returns cumulative counters.
func (c *Crawler) Stats() Stats {
	return Stats{
		Fetched:   c.fetched.Load(),
		Failed:    c.failed.Load(),
		Extracted: c.extracted.Load(),
	}
}

// crawlRun is the state of one Crawl call. Tasks keep a pointer to it and to
// the Crawler; neither owns the other's lifetime.
type crawlRun struct {
	crawler *Crawler
	ctx     context.Context
	filter  LinkFilter

	visited *visitedSet
	pending *pendingWork
	result  *collector
}

// scheduleFetch registers a fetch of address and submits it for admission.
// The address must already be claimed in the visited set.
func (r *crawlRun) scheduleFetch(address string, depth int) {
	origin, err := Origin(address)
	if err != nil {
		r.fail(address, err)
		return
	}

	r.pending.register()
	r.crawler.admission.Submit(origin,
		func() { r.fetch(address, depth) },
		func(err error) {
			defer r.pending.arrive()
			r.fail(address, err)
		},
	)
}

// fetch runs on the download pool.
func (r *crawlRun) fetch(address string, depth int) {
	defer r.pending.arrive()

	page, err := r.fetchPage(address)
	if err != nil {
		r.fail(address, err)
		return
	}

	r.result.succeed(address)
	r.crawler.fetched.Add(1)

	if depth <= 1 {
		return
	}

	r.pending.register()
	err = r.crawler.extractors.Submit(func() { r.extract(address, page, depth-1) })
	if err != nil {
		r.crawler.logger.Debug("link extraction skipped", "url", address, "error", err)
		r.pending.arrive()
	}
}

// fetchPage calls the fetcher, turning a panic into the address's failure.
func (r *crawlRun) fetchPage(address string) (page Page, err error) {
	defer func() {
		if v := recover(); v != nil {
			page, err = nil, fmt.Errorf("panic: %v", v)
		}
	}()
	return r.crawler.fetcher.Fetch(r.ctx, address)
}

// extract runs on the extraction pool and schedules every newly discovered
// link with the remaining depth. A panicking page yields no further links.
func (r *crawlRun) extract(address string, page Page, depth int) {
	defer r.pending.arrive()
	defer func() {
		if v := recover(); v != nil {
			r.crawler.logger.Debug("link extraction panicked", "url", address, "panic", v)
		}
	}()

	links, err := page.Links()
	if err != nil {
		r.crawler.logger.Debug("link extraction failed", "url", address, "error", err)
		return
	}
	r.crawler.extracted.Add(1)

	for _, link := range links {
		if r.filter != nil && !r.filter(link) {
			continue
		}
		if r.visited.claim(link) {
			r.scheduleFetch(link, depth)
		}
	}
}

func (r *crawlRun) fail(address string, err error) {
	r.result.fail(address, err)
	r.crawler.failed.Add(1)
	r.crawler.logger.Debug("fetch failed", "url", address, "error", err)
}
