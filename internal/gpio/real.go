//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// RealSource drives the detection lines through the Linux GPIO character device.
type RealSource struct {
	chip    *gpiocdev.Chip
	offsets map[Line]int
	bias    map[Line]Bias

	mu       sync.Mutex
	lines    map[Line]*gpiocdev.Line
	triggers map[Line]logic.Edge
	watched  map[Line]bool
}

// NewRealSource opens the named chip. offsets maps each line to its offset
// on the chip; lines missing from bias are requested as-is.
func NewRealSource(chipName string, offsets map[Line]int, bias map[Line]Bias) (*RealSource, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealSource{
		chip:     chip,
		offsets:  offsets,
		bias:     bias,
		lines:    make(map[Line]*gpiocdev.Line),
		triggers: make(map[Line]logic.Edge),
		watched:  make(map[Line]bool),
	}, nil
}

// Request claims line as an input.
func (s *RealSource) Request(line Line) error {
	offset, ok := s.offsets[line]
	if !ok {
		return fmt.Errorf("request %s line: no offset configured", line)
	}
	l, err := s.chip.RequestLine(offset, gpiocdev.AsInput, biasOption(s.bias[line]))
	if err != nil {
		return fmt.Errorf("request %s line %d: %w", line, offset, err)
	}
	s.mu.Lock()
	s.lines[line] = l
	s.mu.Unlock()
	return nil
}

// Watch claims line with both-edge detection. Edges are delivered on the
// gpiocdev event goroutine.
func (s *RealSource) Watch(line Line, h EdgeHandler) error {
	offset, ok := s.offsets[line]
	if !ok {
		return fmt.Errorf("watch %s line: no offset configured", line)
	}
	l, err := s.chip.RequestLine(offset,
		gpiocdev.AsInput,
		biasOption(s.bias[line]),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { h(line) }))
	if err != nil {
		return fmt.Errorf("watch %s line %d: %w", line, offset, err)
	}
	s.mu.Lock()
	s.lines[line] = l
	s.triggers[line] = logic.EdgeBoth
	s.watched[line] = true
	s.mu.Unlock()
	return nil
}

// Level returns the raw line value.
func (s *RealSource) Level(line Line) (int, error) {
	l, err := s.line(line)
	if err != nil {
		return 0, err
	}
	v, err := l.Value()
	if err != nil {
		return 0, fmt.Errorf("read %s line: %w", line, err)
	}
	return v, nil
}

// SetTrigger reconfigures the edge detection of a watched line.
func (s *RealSource) SetTrigger(line Line, edge logic.Edge) error {
	l, err := s.line(line)
	if err != nil {
		return err
	}
	if err := l.Reconfigure(edgeOption(edge)); err != nil {
		return fmt.Errorf("set %s trigger %s: %w", line, edge, err)
	}
	s.mu.Lock()
	s.triggers[line] = edge
	s.mu.Unlock()
	return nil
}

// Mask disables edge detection on line.
func (s *RealSource) Mask(line Line) error {
	l, err := s.line(line)
	if err != nil {
		return err
	}
	if err := l.Reconfigure(gpiocdev.WithoutEdges); err != nil {
		return fmt.Errorf("mask %s: %w", line, err)
	}
	return nil
}

// Unmask re-enables edge detection with the last trigger set on line.
func (s *RealSource) Unmask(line Line) error {
	l, err := s.line(line)
	if err != nil {
		return err
	}
	s.mu.Lock()
	edge := s.triggers[line]
	s.mu.Unlock()
	if err := l.Reconfigure(edgeOption(edge)); err != nil {
		return fmt.Errorf("unmask %s: %w", line, err)
	}
	return nil
}

// Close releases every claimed line and the chip. Watched lines have edge
// detection removed first so no handler fires during teardown.
func (s *RealSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for line, l := range s.lines {
		if s.watched[line] {
			if err := l.Reconfigure(gpiocdev.WithoutEdges); err != nil {
				errs = append(errs, fmt.Errorf("disable %s edges: %w", line, err))
			}
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s line: %w", line, err))
		}
		delete(s.lines, line)
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}
	return errors.Join(errs...)
}

func (s *RealSource) line(line Line) (*gpiocdev.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[line]
	if !ok {
		return nil, fmt.Errorf("%s: %w", line, ErrNotRequested)
	}
	return l, nil
}

func edgeOption(edge logic.Edge) gpiocdev.LineConfigOption {
	switch edge {
	case logic.EdgeRising:
		return gpiocdev.WithRisingEdge
	case logic.EdgeFalling:
		return gpiocdev.WithFallingEdge
	default:
		return gpiocdev.WithBothEdges
	}
}

func biasOption(b Bias) gpiocdev.LineBias {
	switch b {
	case BiasPullUp:
		return gpiocdev.WithPullUp
	case BiasPullDown:
		return gpiocdev.WithPullDown
	case BiasDisabled:
		return gpiocdev.WithBiasDisabled
	default:
		return gpiocdev.WithBiasAsIs
	}
}
