package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "webcrawler/1.0"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// HTTPFetcher fetches pages over HTTP.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
// Larger bodies are truncated, not rejected.
func WithMaxBodySize(size int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher that uses client for requests.
// A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...HTTPFetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads address. Any response with status 400 or above is an
// *HTTPStatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, address string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrMalformedAddress, address, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{URL: address, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", address, err)
	}

	finalURL := address
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &HTMLPage{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// HTMLPage is a page fetched by HTTPFetcher.
type HTMLPage struct {
	// URL is the address the body was served from, after redirects.
	URL string

	// StatusCode is the HTTP response status.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// Body holds at most the configured maximum body size.
	Body []byte
}

// Links parses the body and returns its links. Non-HTML pages have none.
func (p *HTMLPage) Links() ([]string, error) {
	if !p.IsHTML() {
		return nil, nil
	}
	parser, err := NewParser(p.URL)
	if err != nil {
		return nil, err
	}
	return parser.Links(bytes.NewReader(p.Body))
}

// IsHTML reports whether the page declares an HTML content type.
// A missing content type is treated as HTML.
func (p *HTMLPage) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
