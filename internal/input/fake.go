package input

import "sync"

// KeyEvent is one recorded key transition.
type KeyEvent struct {
	Code int
	Down bool
}

// FakeKeySink records key transitions for test assertions.
type FakeKeySink struct {
	mu     sync.Mutex
	events []KeyEvent

	// ReportError, if set, is returned by ReportKey. The event is not recorded.
	ReportError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeKeySink creates a FakeKeySink.
func NewFakeKeySink() *FakeKeySink {
	return &FakeKeySink{}
}

// ReportKey records the transition.
func (f *FakeKeySink) ReportKey(code int, down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReportError != nil {
		return f.ReportError
	}
	f.events = append(f.events, KeyEvent{Code: code, Down: down})
	return nil
}

// Close marks the sink closed.
func (f *FakeKeySink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Events returns a copy of recorded transitions.
func (f *FakeKeySink) Events() []KeyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]KeyEvent, len(f.events))
	copy(out, f.events)
	return out
}
