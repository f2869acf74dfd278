package crawler

import (
	"context"
	"sync/atomic"
)

// pendingWork counts outstanding units of work for one crawl.
//
// It starts at 1, the party of the goroutine that called Crawl. Every fetch
// or extraction unit is registered before it is handed to a pool and arrives
// exactly once when it completes. The count can only reach zero after the
// caller has arrived and every registered unit has finished, so register must
// always be called by a party that has not yet arrived.
type pendingWork struct {
	n    atomic.Int64
	done chan struct{}
}

func newPendingWork() *pendingWork {
	p := &pendingWork{done: make(chan struct{})}
	p.n.Store(1)
	return p
}

// register adds one unit of work.
func (p *pendingWork) register() {
	if p.n.Add(1) <= 1 {
		panic("crawler: work registered after crawl completion")
	}
}

// arrive marks one unit of work as finished.
func (p *pendingWork) arrive() {
	switch n := p.n.Add(-1); {
	case n == 0:
		close(p.done)
	case n < 0:
		panic("crawler: pending work counter went negative")
	}
}

// wait blocks until the counter reaches zero or ctx is done.
func (p *pendingWork) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// count returns the number of outstanding units.
func (p *pendingWork) count() int64 {
	return p.n.Load()
}
