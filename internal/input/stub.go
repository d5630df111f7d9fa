//go:build !linux

package input

// UinputSink is unavailable on non-Linux platforms.
type UinputSink struct{}

// NewUinputSink always fails on non-Linux platforms.
func NewUinputSink(path string, dev Device) (*UinputSink, error) {
	return nil, ErrUnsupported
}

func (s *UinputSink) ReportKey(code int, down bool) error { return ErrUnsupported }
func (s *UinputSink) Close() error { return nil }
