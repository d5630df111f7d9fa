package codec

import "sync"

// Write is one recorded register write.
type Write struct {
	Reg Register
	Val uint16
}

// FakeSink records register writes for test assertions.
type FakeSink struct {
	mu     sync.Mutex
	writes []Write

	// WriteError, if set, is returned by Write. The write is still recorded.
	WriteError error
}

// NewFakeSink creates a FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Write records the write.
func (f *FakeSink) Write(reg Register, val uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, Write{Reg: reg, Val: val})
	return f.WriteError
}

// Writes returns a copy of all recorded writes, in order.
func (f *FakeSink) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// WritesTo returns the values written to reg, in order.
func (f *FakeSink) WritesTo(reg Register) []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint16
	for _, w := range f.writes {
		if w.Reg == reg {
			out = append(out, w.Val)
		}
	}
	return out
}

// Last returns the last value written to reg.
func (f *FakeSink) Last(reg Register) (uint16, bool) {
	vals := f.WritesTo(reg)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[len(vals)-1], true
}

// Reset clears recorded writes.
func (f *FakeSink) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.WriteError = nil
}
