// Package codec provides write access to the audio codec's control registers.
// The real implementation talks I2C through periph.io.
// The fake implementation records writes for tests.
package codec

import (
	"fmt"
	"log/slog"
)

// Register is a codec control register address.
type Register uint8

// WM8903 registers touched by jack detection.
const (
	RegMicBias        Register = 0x06
	RegAnalogInputs   Register = 0x0C
	RegHPOutput       Register = 0x0E
	RegSpeakerMixer   Register = 0x10
	RegSpeakerEnable  Register = 0x11
	RegSpeakerVolumeL Register = 0x3E
	RegSpeakerVolumeR Register = 0x3F
	RegGPIO3          Register = 0x76
)

// Register values.
const (
	MicBiasOn       = 0x3 // bias enable | bias current
	AnalogInputsOn  = 0x3 // left | right
	HPOutputOn      = 0x3
	SpeakerMixerOn  = 0x3
	SpeakerEnableOn = 0x3
	GPIO3SpeakerOn  = 0x33 // EN_SPK
	VolumeUpdate    = 0x80
	Off             = 0x0
)

func (r Register) String() string {
	return fmt.Sprintf("0x%02x", uint8(r))
}

// Sink accepts register writes. Writes are fire-and-forget from the
// controllers' point of view: an error is logged, never retried.
type Sink interface {
	Write(reg Register, val uint16) error
}

// LogSink logs writes instead of performing them. Used when no codec bus
// is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(reg Register, val uint16) error {
	s.logger.Debug("codec write", "reg", reg.String(), "val", fmt.Sprintf("%#04x", val))
	return nil
}
