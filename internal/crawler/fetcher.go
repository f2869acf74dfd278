package crawler

import "context"

// Fetcher retrieves the page at an address.
// Fetch is called concurrently from the fetch stage and may block.
type Fetcher interface {
	Fetch(ctx context.Context, address string) (Page, error)
}

// Page is a fetched document.
type Page interface {
	// Links returns the absolute addresses the page links to.
	// It runs on the extraction stage; an error means the page yields no links.
	Links() ([]string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, address string) (Page, error)

// Fetch calls f(ctx, address).
func (f FetcherFunc) Fetch(ctx context.Context, address string) (Page, error) {
	return f(ctx, address)
}
