// Package config loads the jack-sensor daemon configuration.
//
// Defaults come from DefaultConfig, a YAML file may replace any of them and
// command-line flags are applied last through FlagOverrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/input"
	"github.com/sweeney/jack-sensor/internal/logic"
	"github.com/sweeney/jack-sensor/internal/mqtt"
	"github.com/sweeney/jack-sensor/internal/report"
)

// Config is the top-level YAML configuration.
type Config struct {
	// Platform is the board project id (101 line-out, 102 button).
	Platform int `yaml:"platform"`

	// SpeakerNeeded re-enables the speaker path when line-out is removed.
	SpeakerNeeded bool `yaml:"speaker_needed"`

	GPIO     GPIOConfig     `yaml:"gpio"`
	Codec    CodecConfig    `yaml:"codec"`
	Input    InputConfig    `yaml:"input"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Journal  JournalConfig  `yaml:"journal"`
	Reporter ReporterConfig `yaml:"reporter"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type GPIOConfig struct {
	Chip        string `yaml:"chip"`
	JackLine    int    `yaml:"jack_line"`
	HookLine    int    `yaml:"hook_line"`
	LineOutLine int    `yaml:"lineout_line"`
	// Bias per line: as-is, pull-up, pull-down or disabled. Empty is as-is.
	JackBias    string `yaml:"jack_bias"`
	HookBias    string `yaml:"hook_bias"`
	LineOutBias string `yaml:"lineout_bias"`
}

type CodecConfig struct {
	// Bus is the I2C bus name. Empty logs register writes instead.
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

type InputConfig struct {
	// Path is the uinput device. Empty disables the key device.
	Path string `yaml:"path"`
	Name string `yaml:"name"`
	Phys string `yaml:"phys"`
}

type MQTTConfig struct {
	// Broker is the broker URL. Empty disables MQTT.
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type HTTPConfig struct {
	// Addr is the listen address. Empty disables the status server.
	Addr string `yaml:"addr"`
}

type JournalConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir holds the journal database. Empty keeps it in memory.
	Dir            string `yaml:"dir"`
	RetentionHours int    `yaml:"retention_hours"`
}

type ReporterConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Platform: int(logic.PlatformButton),
		GPIO: GPIOConfig{
			Chip:        gpio.DefaultChip,
			JackLine:    gpio.DefaultJackLine,
			HookLine:    gpio.DefaultHookLine,
			LineOutLine: gpio.DefaultLineOutLine,
		},
		Codec: CodecConfig{
			Addr: codec.DefaultAddr,
		},
		Input: InputConfig{
			Path: input.DefaultPath,
			Name: input.DeviceName,
			Phys: input.DevicePhys,
		},
		MQTT: MQTTConfig{
			ClientID:    "jack-sensor",
			TopicPrefix: mqtt.DefaultPrefix,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Journal: JournalConfig{
			Enabled:        true,
			RetentionHours: 24 * 7,
		},
		Reporter: ReporterConfig{
			QueueSize: report.DefaultQueueSize,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil // empty file
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// FlagOverrides holds values from command-line flags. A nil pointer leaves
// the config untouched; a non-nil one is applied even if it is a zero value.
type FlagOverrides struct {
	Platform      *int
	SpeakerNeeded *bool

	Chip        *string
	JackLine    *int
	HookLine    *int
	LineOutLine *int

	CodecBus *string
	Uinput   *string

	Broker      *string
	TopicPrefix *string

	HTTPAddr   *string
	JournalDir *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Platform != nil {
		cfg.Platform = *o.Platform
	}
	if o.SpeakerNeeded != nil {
		cfg.SpeakerNeeded = *o.SpeakerNeeded
	}

	if o.Chip != nil {
		cfg.GPIO.Chip = *o.Chip
	}
	if o.JackLine != nil {
		cfg.GPIO.JackLine = *o.JackLine
	}
	if o.HookLine != nil {
		cfg.GPIO.HookLine = *o.HookLine
	}
	if o.LineOutLine != nil {
		cfg.GPIO.LineOutLine = *o.LineOutLine
	}

	if o.CodecBus != nil {
		cfg.Codec.Bus = *o.CodecBus
	}
	if o.Uinput != nil {
		cfg.Input.Path = *o.Uinput
	}

	if o.Broker != nil {
		cfg.MQTT.Broker = *o.Broker
	}
	if o.TopicPrefix != nil {
		cfg.MQTT.TopicPrefix = *o.TopicPrefix
	}

	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
	}
	if o.JournalDir != nil {
		cfg.Journal.Dir = *o.JournalDir
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must not be empty")
	}
	lines := map[string]int{
		"gpio.jack_line":    c.GPIO.JackLine,
		"gpio.hook_line":    c.GPIO.HookLine,
		"gpio.lineout_line": c.GPIO.LineOutLine,
	}
	for name, v := range lines {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	biases := map[string]string{
		"gpio.jack_bias":    c.GPIO.JackBias,
		"gpio.hook_bias":    c.GPIO.HookBias,
		"gpio.lineout_bias": c.GPIO.LineOutBias,
	}
	for name, v := range biases {
		if _, err := gpio.ParseBias(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.GPIO.JackLine == c.GPIO.HookLine {
		return errors.New("gpio.jack_line and gpio.hook_line must differ")
	}
	if c.PlatformID().Variant() == logic.VariantLineOut &&
		(c.GPIO.LineOutLine == c.GPIO.JackLine || c.GPIO.LineOutLine == c.GPIO.HookLine) {
		return errors.New("gpio.lineout_line must differ from the jack and hook lines")
	}

	if c.Codec.Bus != "" && (c.Codec.Addr == 0 || c.Codec.Addr > 0x7f) {
		return errors.New("codec.addr must be a 7-bit address")
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		return errors.New("mqtt.client_id must not be empty when mqtt.broker is set")
	}
	if c.Journal.RetentionHours < 0 {
		return errors.New("journal.retention_hours must be >= 0")
	}
	if c.Reporter.QueueSize <= 0 {
		return errors.New("reporter.queue_size must be > 0")
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// PlatformID returns the configured platform.
func (c *Config) PlatformID() logic.Platform {
	return logic.Platform(c.Platform)
}

// LineOffsets maps each detection line to its offset on the chip.
func (c *Config) LineOffsets() map[gpio.Line]int {
	return map[gpio.Line]int{
		gpio.LineJack:    c.GPIO.JackLine,
		gpio.LineHook:    c.GPIO.HookLine,
		gpio.LineLineOut: c.GPIO.LineOutLine,
	}
}

// LineBias maps each detection line to its requested bias. Call after
// Validate; unparseable values fall back to as-is.
func (c *Config) LineBias() map[gpio.Line]gpio.Bias {
	out := make(map[gpio.Line]gpio.Bias, 3)
	for line, s := range map[gpio.Line]string{
		gpio.LineJack:    c.GPIO.JackBias,
		gpio.LineHook:    c.GPIO.HookBias,
		gpio.LineLineOut: c.GPIO.LineOutBias,
	} {
		b, err := gpio.ParseBias(s)
		if err != nil {
			b = gpio.BiasAsIs
		}
		out[line] = b
	}
	return out
}

// InputDevice returns the identity of the hook key device.
func (c *Config) InputDevice() input.Device {
	dev := input.HeadsetDevice()
	dev.Name = c.Input.Name
	dev.Phys = c.Input.Phys
	return dev
}

// JournalTTL returns the journal retention as a duration. Zero keeps
// entries forever.
func (c *Config) JournalTTL() time.Duration {
	return time.Duration(c.Journal.RetentionHours) * time.Hour
}
