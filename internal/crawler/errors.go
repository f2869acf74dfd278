package crawler

import (
	"errors"
	"fmt"
)

// Crawler errors.
//
// Per-address errors (malformed address, fetch failure) are recorded in the
// Result and never returned from Crawl. The remaining sentinels describe
// misuse of the API or an interrupted wait.
var (
	// ErrMalformedAddress is recorded for an address whose origin cannot be derived.
	ErrMalformedAddress = errors.New("malformed address")

	// ErrInvalidDepth is returned when Crawl is called with depth < 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidPoolSize is returned when a pool size or the per-host limit is not positive.
	ErrInvalidPoolSize = errors.New("invalid pool size: must be positive")

	// ErrNilFetcher is returned when New is called without a fetcher.
	ErrNilFetcher = errors.New("fetcher must not be nil")

	// ErrClosed is returned when Crawl is called after Close.
	ErrClosed = errors.New("crawler is closed")

	// ErrInterrupted is returned together with a partial result when the
	// context passed to Crawl is done before all work has finished.
	ErrInterrupted = errors.New("crawl interrupted")

	// ErrPoolClosed is returned by Pool.Submit after Close.
	ErrPoolClosed = errors.New("pool is closed")
)

// HTTPStatusError is returned by HTTPFetcher for non-2xx responses.
type HTTPStatusError struct {
	// URL is the requested address.
	URL string

	// StatusCode is the HTTP status code of the response.
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}
