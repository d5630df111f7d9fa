// Package gpio provides level reads and edge-triggered callbacks for the
// headset detection lines, with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// Line identifies one of the detection lines.
type Line int

const (
	LineJack Line = iota
	LineHook
	LineLineOut
)

func (l Line) String() string {
	switch l {
	case LineJack:
		return "jack"
	case LineHook:
		return "hook"
	case LineLineOut:
		return "lineout"
	default:
		return "unknown"
	}
}

// Bias is the internal bias requested for a line. BiasAsIs leaves the
// line as the board configured it.
type Bias string

const (
	BiasAsIs     Bias = "as-is"
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
	BiasDisabled Bias = "disabled"
)

// ParseBias parses a bias name. The empty string means BiasAsIs.
func ParseBias(s string) (Bias, error) {
	switch b := Bias(s); b {
	case "":
		return BiasAsIs, nil
	case BiasAsIs, BiasPullUp, BiasPullDown, BiasDisabled:
		return b, nil
	default:
		return "", fmt.Errorf("unknown bias %q (want as-is, pull-up, pull-down or disabled)", s)
	}
}

// EdgeHandler is called for every edge on a watched line. It runs on the
// event goroutine and must not block.
type EdgeHandler func(Line)

// EdgeSource reads line levels and delivers edge callbacks.
type EdgeSource interface {
	// Request claims a line as a plain input without edge detection.
	Request(line Line) error

	// Watch claims a line as an input with both-edge detection and routes
	// its edges to h.
	Watch(line Line, h EdgeHandler) error

	// Level returns the raw level (0 or 1) of a claimed line.
	Level(line Line) (int, error)

	// SetTrigger changes which edge a watched line reports.
	SetTrigger(line Line, edge logic.Edge) error

	// Mask stops edge delivery on a watched line until Unmask.
	Mask(line Line) error

	// Unmask restores edge delivery with the last trigger set.
	Unmask(line Line) error

	// Close releases all lines.
	Close() error
}

// Default line offsets on gpiochip0.
const (
	DefaultChip        = "gpiochip0"
	DefaultJackLine    = 178
	DefaultHookLine    = 185
	DefaultLineOutLine = 85
)

// ErrNotRequested is returned for operations on a line that was never claimed.
var ErrNotRequested = errors.New("gpio: line not requested")

// Consumer is the label shown for claimed lines.
const Consumer = "jack-sensor"
