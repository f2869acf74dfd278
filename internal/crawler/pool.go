package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded executor for one crawl stage.
//
// Submit never blocks: the task is appended to a queue and a goroutine is
// started that waits on a weighted semaphore. Whichever goroutine acquires a
// slot runs the task at the head of the queue, so at most Size tasks run at
// once and tasks start in the order they were submitted.
//
// Design decision: We use a semaphore instead of a fixed set of worker
// goroutines reading from a channel because:
//  1. Stages submit work to each other (fetch → extract → fetch), so a
//     bounded channel could deadlock when both stages are full
//  2. Queued work must never be dropped, only delayed
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted

	// ctx is cancelled when Close gives up waiting, releasing tasks that
	// are still waiting for a slot.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	queue  []func()
	wg     sync.WaitGroup

	running atomic.Int64

	closeOnce sync.Once
}

// NewPool creates a pool that runs at most size tasks concurrently.
// A non-positive size is treated as 1.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:   name,
		size:   size,
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules task for execution. It returns ErrPoolClosed after Close.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			// Close timed out before this task got a slot.
			p.next()
			return
		}
		defer p.sem.Release(1)

		p.running.Add(1)
		defer p.running.Add(-1)

		p.next()()
	}()

	return nil
}

// next pops the oldest queued task. Every Submit goroutine pops exactly once.
func (p *Pool) next() func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return task
}

// Close stops accepting new tasks and waits for submitted ones to finish.
// Tasks that have not started when grace elapses are discarded; tasks that
// are already running are always waited for. Close is idempotent.
func (p *Pool) Close(grace time.Duration) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		if grace > 0 {
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-done:
			case <-timer.C:
			}
		}

		p.cancel()
		<-done
	})
}

// Name returns the stage name given at construction.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return int(p.running.Load())
}
