//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/jack-sensor/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(chipName string, offsets map[Line]int, bias map[Line]Bias) (*RealSource, error) {
	return nil, errUnsupported
}

func (s *RealSource) Request(line Line) error { return errUnsupported }
func (s *RealSource) Watch(line Line, h EdgeHandler) error { return errUnsupported }
func (s *RealSource) Level(line Line) (int, error) { return 0, errUnsupported }
func (s *RealSource) SetTrigger(line Line, edge logic.Edge) error { return errUnsupported }
func (s *RealSource) Mask(line Line) error { return errUnsupported }
func (s *RealSource) Unmask(line Line) error { return errUnsupported }
func (s *RealSource) Close() error { return nil }
