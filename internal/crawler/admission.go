package crawler

import (
	"sync"
)

// hostTask is a fetch task waiting for admission.
type hostTask struct {
	run   func()
	abort func(error)
}

// hostQueue is the admission state of a single origin.
// A task is either counted in active or waiting in the queue, never both.
type hostQueue struct {
	mu      sync.Mutex
	active  int
	waiting []hostTask
}

// HostAdmission limits the number of concurrently running fetch tasks per
// origin. Tasks over the limit wait in a per-origin FIFO queue; the queue is
// unbounded because discovered addresses must be delayed, never dropped.
//
// Every origin has its own lock, so contention stays local to a host.
type HostAdmission struct {
	pool    *Pool
	perHost int

	// hosts maps an origin to its *hostQueue.
	hosts sync.Map
}

// NewHostAdmission creates an admission controller that runs admitted tasks
// on pool. A non-positive perHost is treated as 1.
func NewHostAdmission(pool *Pool, perHost int) *HostAdmission {
	if perHost <= 0 {
		perHost = 1
	}
	return &HostAdmission{
		pool:    pool,
		perHost: perHost,
	}
}

// Submit admits run for origin. If fewer than perHost tasks of origin are
// active, run is handed to the pool right away; otherwise it is queued
// behind the tasks already waiting for origin.
//
// abort is called instead of run when the pool refuses the task. Either run
// or abort is called exactly once.
func (h *HostAdmission) Submit(origin string, run func(), abort func(error)) {
	q := h.queue(origin)
	task := hostTask{run: run, abort: abort}

	q.mu.Lock()
	if q.active < h.perHost {
		q.active++
		q.mu.Unlock()
		h.start(q, task)
		return
	}
	q.waiting = append(q.waiting, task)
	q.mu.Unlock()
}

// Active returns the number of running tasks for origin.
func (h *HostAdmission) Active(origin string) int {
	q, ok := h.load(origin)
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Waiting returns the number of queued tasks for origin.
func (h *HostAdmission) Waiting(origin string) int {
	q, ok := h.load(origin)
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// PerHost returns the per-origin concurrency limit.
func (h *HostAdmission) PerHost() int {
	return h.perHost
}

func (h *HostAdmission) load(origin string) (*hostQueue, bool) {
	v, ok := h.hosts.Load(origin)
	if !ok {
		return nil, false
	}
	q, ok := v.(*hostQueue)
	return q, ok
}

// queue returns the state for origin, creating it on first use.
func (h *HostAdmission) queue(origin string) *hostQueue {
	if q, ok := h.load(origin); ok {
		return q
	}
	v, _ := h.hosts.LoadOrStore(origin, &hostQueue{})
	return v.(*hostQueue) //nolint:forcetypeassert // only *hostQueue is stored
}

// start hands an admitted task to the pool. If the pool refuses it, the
// slot is passed on as if the task had finished.
func (h *HostAdmission) start(q *hostQueue, task hostTask) {
	if !h.submit(q, task) {
		h.finished(q)
	}
}

// submit runs task on the pool and reports whether the pool accepted it.
// A refused task is aborted.
func (h *HostAdmission) submit(q *hostQueue, task hostTask) bool {
	err := h.pool.Submit(func() {
		defer h.finished(q)
		task.run()
	})
	if err != nil {
		task.abort(err)
		return false
	}
	return true
}

// finished is called exactly once per admitted task. It hands the freed
// slot to the head of the queue (the active count is unchanged) or releases
// the slot when nothing is waiting.
func (h *HostAdmission) finished(q *hostQueue) {
	for {
		q.mu.Lock()
		if len(q.waiting) == 0 {
			q.active--
			q.mu.Unlock()
			return
		}
		next := q.waiting[0]
		q.waiting[0] = hostTask{}
		q.waiting = q.waiting[1:]
		q.mu.Unlock()

		if h.submit(q, next) {
			return
		}
	}
}
