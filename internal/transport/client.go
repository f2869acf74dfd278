package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects bounds redirect chains so a redirect loop fails the page
// instead of the crawl.
const maxRedirects = 10

// SiteHeaders are sent with every request to one host.
type SiteHeaders struct {
	// Cookie is a raw cookie string, e.g. "session=abc; theme=dark".
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string
}

type clientOptions struct {
	proxyAddress string
	siteHeaders  map[string]SiteHeaders
	maxIdle      int
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

// WithProxy routes all connections through the SOCKS5 proxy at address ("host:port").
func WithProxy(address string) ClientOption {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithSiteHeaders injects per-host cookies and headers. Keys are host names
// without port, matched case-insensitively.
func WithSiteHeaders(sites map[string]SiteHeaders) ClientOption {
	return func(o *clientOptions) {
		o.siteHeaders = make(map[string]SiteHeaders, len(sites))
		for host, h := range sites {
			o.siteHeaders[strings.ToLower(host)] = h
		}
	}
}

// WithMaxIdleConnsPerHost sets the idle connection pool size per host.
// It should match the crawler's per-host limit so admitted fetches reuse
// connections instead of dialing.
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxIdle = n
		}
	}
}

// NewClient creates the HTTP client used for crawling.
//
// Design decisions:
//   - A cookie jar keeps sessions that sites set while being crawled
//   - Redirects are limited to 10; the last response is returned after that
//   - timeout bounds the whole request, including reading the body
func NewClient(timeout time.Duration, opts ...ClientOption) (*http.Client, error) {
	o := clientOptions{maxIdle: 4}
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: o.maxIdle,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	if o.proxyAddress != "" {
		dial, err := socksDialContext(o.proxyAddress, dialer)
		if err != nil {
			return nil, err
		}
		// Host names are resolved by the proxy.
		transport.DialContext = dial
	}

	var rt http.RoundTripper = transport
	if len(o.siteHeaders) > 0 {
		rt = &headerInjectingTransport{base: transport, sites: o.siteHeaders}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// socksDialContext returns a context-aware dial function through the SOCKS5
// proxy at address.
func socksDialContext(address string, forward *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if !isValidProxyAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}

	dialer, err := proxy.SOCKS5("tcp", address, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}

	// The dialer cannot be cancelled; stop waiting for it instead.
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		ch := make(chan dialResult, 1)
		go func() {
			conn, err := dialer.Dial(network, addr)
			ch <- dialResult{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					_ = r.conn.Close() //nolint:errcheck // abandoned connection
				}
			}()
			return nil, ctx.Err()
		}
	}, nil
}

// isValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport adds the configured cookie and headers of the
// request host to every request, including redirects.
type headerInjectingTransport struct {
	base  http.RoundTripper
	sites map[string]SiteHeaders
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	site, ok := t.sites[strings.ToLower(req.URL.Hostname())]
	if !ok {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if site.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+site.Cookie)
		} else {
			clone.Header.Set("Cookie", site.Cookie)
		}
	}
	for key, value := range site.Headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
