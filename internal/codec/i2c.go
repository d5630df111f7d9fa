package codec

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultAddr is the WM8903 7-bit I2C address.
const DefaultAddr = 0x1a

// I2CSink writes codec registers over I2C. Each write is the register
// address followed by the 16-bit value, most significant byte first.
type I2CSink struct {
	mu  sync.Mutex
	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewI2CSink opens the named I2C bus (e.g. "/dev/i2c-0" or "0") and
// addresses the codec at addr.
func NewI2CSink(busName string, addr uint16) (*I2CSink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return &I2CSink{
		bus: bus,
		dev: &i2c.Dev{Addr: addr, Bus: bus},
	}, nil
}

// Write sends one register write.
func (s *I2CSink) Write(reg Register, val uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return fmt.Errorf("write %s: codec closed", reg)
	}
	if err := s.dev.Tx(Frame(reg, val), nil); err != nil {
		return fmt.Errorf("write %s: %w", reg, err)
	}
	return nil
}

// Close releases the bus.
func (s *I2CSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus == nil {
		return nil
	}
	err := s.bus.Close()
	s.bus = nil
	s.dev = nil
	if err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}

// Frame encodes a register write as sent on the wire.
func Frame(reg Register, val uint16) []byte {
	return []byte{byte(reg), byte(val >> 8), byte(val)}
}
