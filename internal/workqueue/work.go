// Package workqueue provides deferred work units: a non-blocking Schedule
// for edge and timer callbacks, and a single worker that runs the blocking
// handler outside that context.
package workqueue

import (
	"context"
	"sync"
)

// Work is one deferred work item. Scheduling while the item is already
// pending is a no-op, and at most one invocation of the handler runs at a
// time. Scheduling while the handler runs queues exactly one more run.
type Work struct {
	name    string
	fn      func()
	pending chan struct{}

	mu      sync.Mutex
	running bool
	runs    int
}

// New creates a Work that runs fn.
func New(name string, fn func()) *Work {
	return &Work{
		name:    name,
		fn:      fn,
		pending: make(chan struct{}, 1),
	}
}

// Name returns the work item's name.
func (w *Work) Name() string {
	return w.name
}

// Schedule marks the work pending. It never blocks and is safe to call from
// edge and timer callbacks. It returns false if the work was already pending.
func (w *Work) Schedule() bool {
	select {
	case w.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// Pending reports whether a run is queued.
func (w *Work) Pending() bool {
	return len(w.pending) > 0
}

// Cancel drops a queued run. It does not interrupt a run in progress.
// It returns true if a run was dropped.
func (w *Work) Cancel() bool {
	select {
	case <-w.pending:
		return true
	default:
		return false
	}
}

// Run executes queued work until ctx is canceled. Only one Run may be active
// per Work. A handler in progress when ctx is canceled completes first.
func (w *Work) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.pending:
			w.invoke()
		}
	}
}

// RunPending runs the handler on the calling goroutine if a run is queued.
// It returns true if the handler ran. Used by tests to drive work
// deterministically without a worker goroutine.
func (w *Work) RunPending() bool {
	select {
	case <-w.pending:
		w.invoke()
		return true
	default:
		return false
	}
}

// Runs returns how many times the handler has completed.
func (w *Work) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Running reports whether the handler is executing.
func (w *Work) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Work) invoke() {
	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.runs++
		w.mu.Unlock()
	}()

	w.fn()
}
