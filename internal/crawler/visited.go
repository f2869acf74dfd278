package crawler

import "sync"

// visitedSet records every address claimed during one crawl.
// It only grows; claim is the single point that prevents duplicate work.
type visitedSet struct {
	m sync.Map
}

// claim inserts address and reports whether this call inserted it.
// Exactly one of any number of concurrent callers for the same address
// observes true.
func (v *visitedSet) claim(address string) bool {
	_, loaded := v.m.LoadOrStore(address, struct{}{})
	return !loaded
}

// contains reports whether address has been claimed.
func (v *visitedSet) contains(address string) bool {
	_, ok := v.m.Load(address)
	return ok
}

// len returns the number of claimed addresses.
func (v *visitedSet) len() int {
	n := 0
	v.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
