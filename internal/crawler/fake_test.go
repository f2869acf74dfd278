package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var errNotFound = errors.New("not found")

// fakePage is a Page with a fixed link list.
type fakePage struct {
	links []string
	err   error
}

func (p *fakePage) Links() ([]string, error) {
	return p.links, p.err
}

// fakeWeb serves a static link graph and records how it is accessed.
type fakeWeb struct {
	pages    map[string][]string
	failures map[string]error
	linkErrs map[string]error
	delay    time.Duration

	mu         sync.Mutex
	calls      map[string]int
	perHost    map[string]int
	maxPerHost map[string]int

	active    atomic.Int64
	maxActive atomic.Int64
}

func newFakeWeb(pages map[string][]string) *fakeWeb {
	return &fakeWeb{
		pages:      pages,
		failures:   make(map[string]error),
		linkErrs:   make(map[string]error),
		calls:      make(map[string]int),
		perHost:    make(map[string]int),
		maxPerHost: make(map[string]int),
	}
}

func (w *fakeWeb) Fetch(ctx context.Context, address string) (Page, error) {
	host, err := Origin(address)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.calls[address]++
	w.perHost[host]++
	if w.perHost[host] > w.maxPerHost[host] {
		w.maxPerHost[host] = w.perHost[host]
	}
	w.mu.Unlock()

	n := w.active.Add(1)
	for {
		peak := w.maxActive.Load()
		if n <= peak || w.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	defer func() {
		w.active.Add(-1)
		w.mu.Lock()
		w.perHost[host]--
		w.mu.Unlock()
	}()

	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := w.failures[address]; ok {
		return nil, err
	}
	links, ok := w.pages[address]
	if !ok {
		return nil, fmt.Errorf("%s: %w", address, errNotFound)
	}
	return &fakePage{links: links, err: w.linkErrs[address]}, nil
}

func (w *fakeWeb) callCount(address string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[address]
}

func (w *fakeWeb) totalCalls() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.calls))
	for k, v := range w.calls {
		out[k] = v
	}
	return out
}

func (w *fakeWeb) peakForHost(host string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxPerHost[host]
}
