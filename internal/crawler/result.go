package crawler

import (
	"maps"
	"slices"
	"sync"
)

// Result is the outcome of one crawl.
//
// An address appears at most once, either in Downloaded or in Errors.
type Result struct {
	// Downloaded lists successfully fetched addresses in the order their
	// fetches completed.
	Downloaded []string

	// Errors maps every address that could not be fetched to its cause.
	Errors map[string]error
}

// collector accumulates a Result from concurrent fetch tasks.
// The two halves are locked independently.
type collector struct {
	downloadedMu sync.Mutex
	downloaded   []string

	errorsMu sync.Mutex
	errors   map[string]error
}

func newCollector() *collector {
	return &collector{
		downloaded: make([]string, 0),
		errors:     make(map[string]error),
	}
}

// succeed records a downloaded address.
func (c *collector) succeed(address string) {
	c.downloadedMu.Lock()
	defer c.downloadedMu.Unlock()
	c.downloaded = append(c.downloaded, address)
}

// fail records the failure cause of an address. The first cause wins.
func (c *collector) fail(address string, err error) {
	c.errorsMu.Lock()
	defer c.errorsMu.Unlock()
	if _, ok := c.errors[address]; ok {
		return
	}
	c.errors[address] = err
}

// snapshot copies the accumulated state into a Result.
func (c *collector) snapshot() *Result {
	c.downloadedMu.Lock()
	downloaded := slices.Clone(c.downloaded)
	c.downloadedMu.Unlock()

	c.errorsMu.Lock()
	errs := maps.Clone(c.errors)
	c.errorsMu.Unlock()

	return &Result{
		Downloaded: downloaded,
		Errors:     errs,
	}
}
