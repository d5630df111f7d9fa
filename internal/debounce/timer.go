// Package debounce provides a re-armable one-shot delay timer.
package debounce

import (
	"sync"
	"time"

	"github.com/sweeney/jack-sensor/internal/clock"
)

// Timer holds at most one pending deadline. Arming replaces any earlier
// deadline in a single step (last write wins), so a burst of arms collapses
// into one firing.
type Timer struct {
	clk clock.Clock
	fn  func(token uint64)

	mu       sync.Mutex
	pending  clock.Timer
	gen      uint64
	deadline time.Time
	fires    int
}

// New creates a Timer that calls fn each time an armed deadline expires.
// fn runs on the clock's callback goroutine and must not block.
func New(clk clock.Clock, fn func()) *Timer {
	return &Timer{clk: clk, fn: func(uint64) { fn() }}
}

// NewWithToken creates a Timer whose callback receives the token returned
// by the Arm call it belongs to. Callers that act on shared state compare it
// against the token they recorded, since a firing that raced with Stop or
// Arm can still reach fn.
func NewWithToken(clk clock.Clock, fn func(token uint64)) *Timer {
	return &Timer{clk: clk, fn: fn}
}

// Arm cancels any pending deadline and schedules a fresh one d from now.
// It returns a token identifying this deadline. Tokens are never zero.
func (t *Timer) Arm(d time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
	}
	t.gen++
	gen := t.gen
	t.deadline = t.clk.Now().Add(d)
	t.pending = t.clk.AfterFunc(d, func() { t.fire(gen) })
	return gen
}

// Stop cancels the pending deadline. It returns true if one was pending.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.pending == nil {
		return false
	}
	t.pending.Stop()
	t.pending = nil
	return true
}

// Pending reports whether a deadline is armed and has not fired.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Deadline returns the most recently armed deadline.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Fires returns how many times the timer has expired.
func (t *Timer) Fires() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fires
}

// fire runs fn unless the deadline it belongs to was replaced or stopped
// after the underlying timer had already started firing.
func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.fires++
	t.mu.Unlock()

	t.fn(gen)
}
