package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"
)

func newTestCrawler(t *testing.T, f Fetcher, downloaders, extractors, perHost int) *Crawler {
	t.Helper()

	c, err := New(f, downloaders, extractors, perHost,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithShutdownGrace(time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create crawler: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})
	return c
}

// assertNoDuplicates checks that every address appears once across the result.
func assertNoDuplicates(t *testing.T, r *Result) {
	t.Helper()

	seen := make(map[string]bool)
	for _, addr := range r.Downloaded {
		if seen[addr] {
			t.Errorf("address %s downloaded twice", addr)
		}
		seen[addr] = true
	}
	for addr := range r.Errors {
		if seen[addr] {
			t.Errorf("address %s is both downloaded and failed", addr)
		}
	}
}

// TestCrawlScenarios tests small crawls with known outcomes.
func TestCrawlScenarios(t *testing.T) {
	t.Parallel()

	t.Run("seed without links", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(map[string][]string{
			"http://seed.test/": nil,
		})
		c := newTestCrawler(t, web, 4, 2, 2)

		result, err := c.Crawl(context.Background(), "http://seed.test/", 3)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !slices.Equal(result.Downloaded, []string{"http://seed.test/"}) {
			t.Errorf("expected only the seed, got %v", result.Downloaded)
		}
		if len(result.Errors) != 0 {
			t.Errorf("expected no errors, got %v", result.Errors)
		}
	})

	t.Run("depth one fetches only the seed", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(map[string][]string{
			"http://seed.test/":  {"http://seed.test/a", "http://seed.test/b"},
			"http://seed.test/a": nil,
			"http://seed.test/b": nil,
		})
		c := newTestCrawler(t, web, 4, 2, 2)

		result, err := c.Crawl(context.Background(), "http://seed.test/", 1)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !slices.Equal(result.Downloaded, []string{"http://seed.test/"}) {
			t.Errorf("expected only the seed, got %v", result.Downloaded)
		}
		if web.callCount("http://seed.test/a") != 0 || web.callCount("http://seed.test/b") != 0 {
			t.Error("links were fetched at depth 1")
		}
		if c.Stats().Extracted != 0 {
			t.Errorf("expected no extraction, got %d", c.Stats().Extracted)
		}
	})

	t.Run("duplicate link on a page is fetched once", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(map[string][]string{
			"http://seed.test/":  {"http://seed.test/a", "http://seed.test/a", "http://seed.test/b"},
			"http://seed.test/a": nil,
			"http://seed.test/b": nil,
		})
		c := newTestCrawler(t, web, 4, 2, 2)

		result, err := c.Crawl(context.Background(), "http://seed.test/", 2)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if got := web.callCount("http://seed.test/a"); got != 1 {
			t.Errorf("expected a to be fetched once, got %d", got)
		}
		if len(result.Downloaded) != 3 {
			t.Errorf("expected 3 downloads, got %v", result.Downloaded)
		}
		assertNoDuplicates(t, result)
	})

	t.Run("failing seed", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		web := newFakeWeb(map[string][]string{
			"http://seed.test/": {"http://seed.test/a"},
		})
		web.failures["http://seed.test/"] = cause
		c := newTestCrawler(t, web, 4, 2, 2)

		result, err := c.Crawl(context.Background(), "http://seed.test/", 3)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if len(result.Downloaded) != 0 {
			t.Errorf("expected no downloads, got %v", result.Downloaded)
		}
		if !errors.Is(result.Errors["http://seed.test/"], cause) {
			t.Errorf("expected seed to fail with %v, got %v", cause, result.Errors)
		}
		if web.callCount("http://seed.test/a") != 0 {
			t.Error("links of a failed page were fetched")
		}
	})

	t.Run("per-host limit of one", func(t *testing.T) {
		t.Parallel()

		pages := map[string][]string{"http://seed.test/": nil}
		for i := range 5 {
			link := fmt.Sprintf("http://slow.test/%d", i)
			pages["http://seed.test/"] = append(pages["http://seed.test/"], link)
			pages[link] = nil
		}
		web := newFakeWeb(pages)
		web.delay = 10 * time.Millisecond
		c := newTestCrawler(t, web, 8, 2, 1)

		result, err := c.Crawl(context.Background(), "http://seed.test/", 2)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if len(result.Downloaded) != 6 {
			t.Errorf("expected 6 downloads, got %v", result.Downloaded)
		}
		if peak := web.peakForHost("slow.test"); peak != 1 {
			t.Errorf("expected at most 1 concurrent fetch for slow.test, got %d", peak)
		}
	})
}

// TestCrawlDepthBound tests that no page beyond depth-1 hops is fetched.
func TestCrawlDepthBound(t *testing.T) {
	t.Parallel()

	// A chain seed -> 1 -> 2 -> 3 -> 4.
	pages := map[string][]string{}
	prev := "http://chain.test/"
	for i := 1; i <= 4; i++ {
		next := fmt.Sprintf("http://chain.test/%d", i)
		pages[prev] = []string{next}
		prev = next
	}
	pages[prev] = nil

	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{name: "depth 1", depth: 1, want: 1},
		{name: "depth 2", depth: 2, want: 2},
		{name: "depth 3", depth: 3, want: 3},
		{name: "depth beyond chain", depth: 10, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			web := newFakeWeb(pages)
			c := newTestCrawler(t, web, 2, 2, 1)

			result, err := c.Crawl(context.Background(), "http://chain.test/", tt.depth)
			if err != nil {
				t.Fatalf("crawl failed: %v", err)
			}
			if len(result.Downloaded) != tt.want {
				t.Errorf("expected %d downloads, got %v", tt.want, result.Downloaded)
			}
		})
	}
}

// TestCrawlCompleteness tests a cyclic multi-host graph with failures.
func TestCrawlCompleteness(t *testing.T) {
	t.Parallel()

	hosts := []string{"a.test", "b.test", "c.test"}
	pages := make(map[string][]string)
	var all []string
	for _, h := range hosts {
		for i := range 10 {
			all = append(all, fmt.Sprintf("http://%s/%d", h, i))
		}
	}
	// Every page links to every other page, including itself.
	for _, p := range all {
		pages[p] = all
	}

	web := newFakeWeb(pages)
	web.failures["http://b.test/3"] = errors.New("boom")
	web.linkErrs["http://c.test/0"] = errors.New("bad html")
	web.delay = time.Millisecond

	c := newTestCrawler(t, web, 6, 3, 2)

	result, err := c.Crawl(context.Background(), "http://a.test/0", 3)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	assertNoDuplicates(t, result)
	if got := len(result.Downloaded) + len(result.Errors); got != len(all) {
		t.Errorf("expected %d outcomes, got %d", len(all), got)
	}
	if _, ok := result.Errors["http://b.test/3"]; !ok {
		t.Error("expected b.test/3 to be recorded as failed")
	}
	if !slices.Contains(result.Downloaded, "http://c.test/0") {
		t.Error("page with link extraction failure should still be downloaded")
	}
	for addr, n := range web.totalCalls() {
		if n != 1 {
			t.Errorf("%s fetched %d times", addr, n)
		}
	}
	for _, h := range hosts {
		if peak := web.peakForHost(h); peak > 2 {
			t.Errorf("host %s exceeded limit: %d", h, peak)
		}
	}
	if peak := web.maxActive.Load(); peak > 6 {
		t.Errorf("download pool exceeded its size: %d", peak)
	}
}

// TestCrawlMalformedAddress tests that an address without an origin is
// recorded as a failure and never fetched.
func TestCrawlMalformedAddress(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(map[string][]string{
		"http://seed.test/":   {"not a url", "http://seed.test/ok"},
		"http://seed.test/ok": nil,
	})
	c := newTestCrawler(t, web, 2, 2, 2)

	result, err := c.Crawl(context.Background(), "http://seed.test/", 2)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if !errors.Is(result.Errors["not a url"], ErrMalformedAddress) {
		t.Errorf("expected malformed address failure, got %v", result.Errors)
	}
	if web.callCount("not a url") != 0 {
		t.Error("malformed address was fetched")
	}
	if len(result.Downloaded) != 2 {
		t.Errorf("expected 2 downloads, got %v", result.Downloaded)
	}
}

// panicPage is a Page whose link extraction panics.
type panicPage struct{}

func (panicPage) Links() ([]string, error) {
	panic("bad page")
}

// TestCrawlPanickingCollaborators tests that a panic while fetching or
// extracting one address stays local to that address.
func TestCrawlPanickingCollaborators(t *testing.T) {
	t.Parallel()

	t.Run("links panic", func(t *testing.T) {
		t.Parallel()

		f := FetcherFunc(func(_ context.Context, _ string) (Page, error) {
			return panicPage{}, nil
		})
		c := newTestCrawler(t, f, 2, 2, 2)

		result, err := c.Crawl(context.Background(), "http://a.test/", 2)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !slices.Equal(result.Downloaded, []string{"http://a.test/"}) {
			t.Errorf("expected only the seed downloaded, got %v", result.Downloaded)
		}
		if len(result.Errors) != 0 {
			t.Errorf("expected no failures, got %v", result.Errors)
		}
	})

	t.Run("fetch panic", func(t *testing.T) {
		t.Parallel()

		f := FetcherFunc(func(_ context.Context, address string) (Page, error) {
			if address == "http://a.test/boom" {
				panic("fetcher exploded")
			}
			return &fakePage{links: []string{"http://a.test/boom", "http://a.test/ok"}}, nil
		})
		c := newTestCrawler(t, f, 2, 2, 2)

		result, err := c.Crawl(context.Background(), "http://a.test/", 2)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		assertNoDuplicates(t, result)

		got := slices.Sorted(slices.Values(result.Downloaded))
		if want := []string{"http://a.test/", "http://a.test/ok"}; !slices.Equal(got, want) {
			t.Errorf("expected downloads %v, got %v", want, got)
		}
		cause := result.Errors["http://a.test/boom"]
		if cause == nil || cause.Error() != "panic: fetcher exploded" {
			t.Errorf("expected recorded panic, got %v", cause)
		}
	})
}

// TestCrawlIdempotentSeed tests that repeated crawls classify the seed the same way.
func TestCrawlIdempotentSeed(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(map[string][]string{
		"http://ok.test/": {"http://ok.test/x"},
	})
	web.failures["http://bad.test/"] = errors.New("down")
	c := newTestCrawler(t, web, 2, 1, 1)

	for _, seed := range []string{"http://ok.test/", "http://bad.test/"} {
		first, err := c.Crawl(context.Background(), seed, 1)
		if err != nil {
			t.Fatalf("first crawl failed: %v", err)
		}
		second, err := c.Crawl(context.Background(), seed, 1)
		if err != nil {
			t.Fatalf("second crawl failed: %v", err)
		}
		if !slices.Equal(first.Downloaded, second.Downloaded) {
			t.Errorf("%s: downloads differ: %v vs %v", seed, first.Downloaded, second.Downloaded)
		}
		if len(first.Errors) != len(second.Errors) {
			t.Errorf("%s: errors differ: %v vs %v", seed, first.Errors, second.Errors)
		}
	}
}

// TestCrawlConcurrentCalls tests independent crawls sharing one Crawler.
func TestCrawlConcurrentCalls(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(map[string][]string{
		"http://one.test/":    {"http://one.test/a", "http://shared.test/"},
		"http://one.test/a":   nil,
		"http://two.test/":    {"http://two.test/b", "http://shared.test/"},
		"http://two.test/b":   nil,
		"http://shared.test/": nil,
	})
	c := newTestCrawler(t, web, 4, 2, 1)

	results := make([]*Result, 2)
	errs := make(chan error, 2)
	for i, seed := range []string{"http://one.test/", "http://two.test/"} {
		go func() {
			r, err := c.Crawl(context.Background(), seed, 2)
			results[i] = r
			errs <- err
		}()
	}
	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
	}

	for i, r := range results {
		if len(r.Downloaded) != 3 {
			t.Errorf("crawl %d: expected 3 downloads, got %v", i, r.Downloaded)
		}
		if !slices.Contains(r.Downloaded, "http://shared.test/") {
			t.Errorf("crawl %d: shared page missing", i)
		}
	}
	if got := web.callCount("http://shared.test/"); got != 2 {
		t.Errorf("visited set must be per crawl; shared page fetched %d times", got)
	}
}

// TestCrawlLinkFilter tests that rejected links are neither fetched nor reported.
func TestCrawlLinkFilter(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(map[string][]string{
		"http://seed.test/":        {"http://seed.test/admin/x", "http://seed.test/doc.pdf", "http://seed.test/ok"},
		"http://seed.test/ok":      nil,
		"http://seed.test/admin/x": nil,
		"http://seed.test/doc.pdf": nil,
	})
	c := newTestCrawler(t, web, 2, 1, 2)

	filter := NewPatternFilter([]string{"/admin/*", "*.pdf"}, nil)
	result, err := c.Crawl(context.Background(), "http://seed.test/", 2, WithLinkFilter(filter))
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(result.Downloaded) != 2 {
		t.Errorf("expected seed and /ok, got %v", result.Downloaded)
	}
	if web.callCount("http://seed.test/admin/x") != 0 {
		t.Error("ignored link was fetched")
	}
}

// TestCrawlInterrupted tests that a done context returns a partial result.
func TestCrawlInterrupted(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(map[string][]string{
		"http://seed.test/":  {"http://seed.test/a"},
		"http://seed.test/a": nil,
	})
	web.delay = 5 * time.Second
	c := newTestCrawler(t, web, 2, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := c.Crawl(ctx, "http://seed.test/", 2)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the context error to be wrapped, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a partial result")
	}
}

// TestCrawlInvalidArguments tests argument validation.
func TestCrawlInvalidArguments(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(nil)

	t.Run("invalid depth", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(t, web, 1, 1, 1)
		for _, depth := range []int{0, -1} {
			if _, err := c.Crawl(context.Background(), "http://seed.test/", depth); !errors.Is(err, ErrInvalidDepth) {
				t.Errorf("depth %d: expected ErrInvalidDepth, got %v", depth, err)
			}
		}
	})

	t.Run("invalid pool sizes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name                             string
			downloaders, extractors, perHost int
		}{
			{name: "zero downloaders", downloaders: 0, extractors: 1, perHost: 1},
			{name: "zero extractors", downloaders: 1, extractors: 0, perHost: 1},
			{name: "negative per host", downloaders: 1, extractors: 1, perHost: -1},
		}
		for _, tt := range tests {
			if _, err := New(web, tt.downloaders, tt.extractors, tt.perHost); !errors.Is(err, ErrInvalidPoolSize) {
				t.Errorf("%s: expected ErrInvalidPoolSize, got %v", tt.name, err)
			}
		}
	})

	t.Run("nil fetcher", func(t *testing.T) {
		t.Parallel()

		if _, err := New(nil, 1, 1, 1); !errors.Is(err, ErrNilFetcher) {
			t.Errorf("expected ErrNilFetcher, got %v", err)
		}
	})
}

// TestCrawlerClose tests that Close is idempotent and rejects new crawls.
func TestCrawlerClose(t *testing.T) {
	t.Parallel()

	c, err := New(newFakeWeb(nil), 1, 1, 1)
	if err != nil {
		t.Fatalf("failed to create crawler: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if _, err := c.Crawl(context.Background(), "http://seed.test/", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// TestCrawlerStats tests cumulative counters.
func TestCrawlerStats(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(map[string][]string{
		"http://seed.test/":  {"http://seed.test/a", "http://seed.test/missing"},
		"http://seed.test/a": nil,
	})
	c := newTestCrawler(t, web, 2, 1, 2)

	if _, err := c.Crawl(context.Background(), "http://seed.test/", 2); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	stats := c.Stats()
	if stats.Fetched != 2 {
		t.Errorf("expected 2 fetched, got %d", stats.Fetched)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	if stats.Extracted != 1 {
		t.Errorf("expected 1 extracted, got %d", stats.Extracted)
	}
}
