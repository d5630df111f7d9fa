package gpio

import (
	"fmt"
	"sync"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// FakeSource is a test double with settable line levels and synchronous
// edge delivery.
type FakeSource struct {
	mu       sync.Mutex
	levels   map[Line]int
	scripted map[Line][]int
	handlers map[Line]EdgeHandler
	claimed  map[Line]bool
	masked   map[Line]bool
	triggers map[Line]logic.Edge
	reads    map[Line]int

	// Triggers records every SetTrigger call, in order.
	Triggers []logic.Edge

	// MaskCalls and UnmaskCalls count Mask/Unmask calls.
	MaskCalls   int
	UnmaskCalls int

	// Closed tracks if Close was called.
	Closed bool

	// RequestError and WatchError, if set for a line, are returned by
	// Request and Watch for that line.
	RequestError map[Line]error
	WatchError   map[Line]error

	// ReadError, if set, is returned by every Level call.
	ReadError error
}

// NewFakeSource creates a FakeSource with every line high (inactive).
func NewFakeSource() *FakeSource {
	return &FakeSource{
		levels:       map[Line]int{LineJack: 1, LineHook: 1, LineLineOut: 1},
		scripted:     make(map[Line][]int),
		handlers:     make(map[Line]EdgeHandler),
		claimed:      make(map[Line]bool),
		masked:       make(map[Line]bool),
		triggers:     make(map[Line]logic.Edge),
		reads:        make(map[Line]int),
		RequestError: make(map[Line]error),
		WatchError:   make(map[Line]error),
	}
}

// Request claims line.
func (f *FakeSource) Request(line Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.RequestError[line]; err != nil {
		return err
	}
	f.claimed[line] = true
	return nil
}

// Watch claims line and records h as its edge handler.
func (f *FakeSource) Watch(line Line, h EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.WatchError[line]; err != nil {
		return err
	}
	f.claimed[line] = true
	f.handlers[line] = h
	f.triggers[line] = logic.EdgeBoth
	return nil
}

// Level returns the next scripted value for line if any, otherwise its
// current level.
func (f *FakeSource) Level(line Line) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if !f.claimed[line] {
		return 0, fmt.Errorf("%s: %w", line, ErrNotRequested)
	}
	f.reads[line]++
	if q := f.scripted[line]; len(q) > 0 {
		f.scripted[line] = q[1:]
		return q[0], nil
	}
	return f.levels[line], nil
}

// SetTrigger records the trigger for line.
func (f *FakeSource) SetTrigger(line Line, edge logic.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[line]; !ok {
		return fmt.Errorf("%s: %w", line, ErrNotRequested)
	}
	f.triggers[line] = edge
	f.Triggers = append(f.Triggers, edge)
	return nil
}

// Mask suppresses edge delivery on line.
func (f *FakeSource) Mask(line Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[line] = true
	f.MaskCalls++
	return nil
}

// Unmask restores edge delivery on line.
func (f *FakeSource) Unmask(line Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[line] = false
	f.UnmaskCalls++
	return nil
}

// Close marks the source as closed and drops all handlers.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	f.handlers = make(map[Line]EdgeHandler)
	return nil
}

// SetLevel changes the level of line without generating an edge.
func (f *FakeSource) SetLevel(line Line, level int) {
	f.mu.Lock()
	f.levels[line] = level
	f.mu.Unlock()
}

// Drive changes the level of line and, if it changed and the line is
// watched and unmasked, calls its edge handler on the calling goroutine.
// It returns true if an edge was delivered.
func (f *FakeSource) Drive(line Line, level int) bool {
	f.mu.Lock()
	changed := f.levels[line] != level
	f.levels[line] = level
	h := f.handlers[line]
	masked := f.masked[line]
	f.mu.Unlock()

	if !changed || h == nil || masked {
		return false
	}
	h(line)
	return true
}

// Edge calls the handler for line without changing its level, as electrical
// noise would. It returns true if an edge was delivered.
func (f *FakeSource) Edge(line Line) bool {
	f.mu.Lock()
	h := f.handlers[line]
	masked := f.masked[line]
	f.mu.Unlock()

	if h == nil || masked {
		return false
	}
	h(line)
	return true
}

// ScriptReads queues values returned by the next Level calls on line before
// falling back to its current level.
func (f *FakeSource) ScriptReads(line Line, values ...int) {
	f.mu.Lock()
	f.scripted[line] = append(f.scripted[line], values...)
	f.mu.Unlock()
}

// Reads returns how many times Level was called for line.
func (f *FakeSource) Reads(line Line) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[line]
}

// Masked reports whether line is currently masked.
func (f *FakeSource) Masked(line Line) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.masked[line]
}

// Watched reports whether line has an edge handler.
func (f *FakeSource) Watched(line Line) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[line]
	return ok
}

// Trigger returns the last trigger set on line.
func (f *FakeSource) Trigger(line Line) logic.Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers[line]
}
