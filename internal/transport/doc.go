// Package transport builds the HTTP client the crawler fetches pages with.
//
// The client can route every connection through a SOCKS5 proxy, either one
// the user runs or a private Tor daemon started with EmbeddedTor. Per-site
// cookies and headers from the configuration file are injected by a
// RoundTripper keyed on the request host, so a single client serves every
// seed of a batch.
//
// # Usage
//
//	client, err := transport.NewClient(30*time.Second,
//		transport.WithProxy("127.0.0.1:9050"),
//		transport.WithSiteHeaders(map[string]transport.SiteHeaders{
//			"example.com": {Cookie: "session=abc"},
//		}),
//	)
package transport
