package model

import (
	"cmp"
	"net/url"
	"slices"
	"strings"
	"time"
)

// CrawlReport is the outcome of crawling one seed.
//
// Design decision: We keep only addresses and failure causes, not page
// bodies, because:
//  1. Reports are stored for every run and compared across runs
//  2. The crawl result is defined by which pages were reached, not their content
type CrawlReport struct {
	// ID is the database identifier. Zero until the report is saved.
	ID int64 `json:"id,omitempty"`

	// Seed is the address the crawl started from.
	Seed string `json:"seed"`

	// Depth is the maximum number of link hops plus one.
	Depth int `json:"depth"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl returned. Zero while running.
	FinishedAt time.Time `json:"finished_at"`

	// Downloaded lists successfully fetched addresses in completion order.
	Downloaded []string `json:"downloaded"`

	// Failures lists the addresses that could not be fetched, sorted by URL.
	Failures []Failure `json:"failures"`

	// Interrupted is true when the crawl was cancelled before it finished.
	// Downloaded and Failures then hold a partial result.
	Interrupted bool `json:"interrupted"`

	// Comparison holds the difference to the previous run of the same seed.
	Comparison *Comparison `json:"comparison,omitempty"`

	// Error is the error that stopped the pipeline, if any.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// Failure is an address that could not be fetched.
type Failure struct {
	// URL is the address.
	URL string `json:"url"`

	// Error describes the cause.
	Error string `json:"error"` //nolint:tagliatelle // error is conventional

	// StatusCode is the HTTP status when the server answered with an error.
	StatusCode int `json:"status_code,omitempty"`
}

// Comparison describes how a crawl differs from the previous crawl of the same seed.
type Comparison struct {
	// PreviousID is the database ID of the previous run.
	PreviousID int64 `json:"previous_id"`

	// PreviousAt is when the previous run started.
	PreviousAt time.Time `json:"previous_at"`

	// NewPages were downloaded now but not in the previous run.
	NewPages []string `json:"new_pages,omitempty"`

	// MissingPages were downloaded in the previous run but not now.
	MissingPages []string `json:"missing_pages,omitempty"`

	// NewFailures failed now but did not fail in the previous run.
	NewFailures []string `json:"new_failures,omitempty"`

	// RecoveredPages failed in the previous run and were downloaded now.
	RecoveredPages []string `json:"recovered_pages,omitempty"`
}

// HasChanges reports whether anything differs from the previous run.
func (c *Comparison) HasChanges() bool {
	return len(c.NewPages) > 0 || len(c.MissingPages) > 0 ||
		len(c.NewFailures) > 0 || len(c.RecoveredPages) > 0
}

// HostSummary counts outcomes for one host.
type HostSummary struct {
	Host       string `json:"host"`
	Downloaded int    `json:"downloaded"`
	Failed     int    `json:"failed"`
}

// NewCrawlReport creates a report for seed.
func NewCrawlReport(seed string, depth int) *CrawlReport {
	return &CrawlReport{
		Seed:       seed,
		Depth:      depth,
		StartedAt:  time.Now(),
		Downloaded: make([]string, 0),
		Failures:   make([]Failure, 0),
	}
}

// SetError records err as the error that stopped the pipeline.
func (r *CrawlReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Total returns the number of addresses with an outcome.
func (r *CrawlReport) Total() int {
	return len(r.Downloaded) + len(r.Failures)
}

// Duration returns how long the crawl took, or zero if it has not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedURLs returns the failed addresses in report order.
func (r *CrawlReport) FailedURLs() []string {
	urls := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		urls[i] = f.URL
	}
	return urls
}

// HostSummaries groups outcomes by host, sorted by host name.
// Addresses without a parseable host are counted under "".
func (r *CrawlReport) HostSummaries() []HostSummary {
	byHost := make(map[string]*HostSummary)
	get := func(address string) *HostSummary {
		host := hostOf(address)
		s, ok := byHost[host]
		if !ok {
			s = &HostSummary{Host: host}
			byHost[host] = s
		}
		return s
	}

	for _, address := range r.Downloaded {
		get(address).Downloaded++
	}
	for _, f := range r.Failures {
		get(f.URL).Failed++
	}

	summaries := make([]HostSummary, 0, len(byHost))
	for _, s := range byHost {
		summaries = append(summaries, *s)
	}
	slices.SortFunc(summaries, func(a, b HostSummary) int {
		return cmp.Compare(a.Host, b.Host)
	})
	return summaries
}

// Compare computes how current differs from previous. All lists are sorted.
func Compare(previous, current *CrawlReport) *Comparison {
	prevOK := toSet(previous.Downloaded)
	prevFailed := toSet(previous.FailedURLs())
	curOK := toSet(current.Downloaded)
	curFailed := toSet(current.FailedURLs())

	c := &Comparison{
		PreviousID: previous.ID,
		PreviousAt: previous.StartedAt,
	}
	for address := range curOK {
		if _, ok := prevOK[address]; !ok {
			if _, failed := prevFailed[address]; failed {
				c.RecoveredPages = append(c.RecoveredPages, address)
			} else {
				c.NewPages = append(c.NewPages, address)
			}
		}
	}
	for address := range prevOK {
		if _, ok := curOK[address]; !ok {
			c.MissingPages = append(c.MissingPages, address)
		}
	}
	for address := range curFailed {
		if _, failed := prevFailed[address]; !failed {
			c.NewFailures = append(c.NewFailures, address)
		}
	}

	slices.Sort(c.NewPages)
	slices.Sort(c.MissingPages)
	slices.Sort(c.NewFailures)
	slices.Sort(c.RecoveredPages)
	return c
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func hostOf(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
