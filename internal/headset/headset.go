// Package headset detects headset, line-out and hook button activity on the
// audio jack and applies the matching codec side effects.
//
// Edge callbacks only read line levels, arm timers and schedule work. All
// blocking steps run in per-line work items. Accessory state, the hook
// suppress flag, the mic bias cache, the debounce duration and the press
// counter are guarded by one mutex.
package headset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/jack-sensor/internal/clock"
	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/debounce"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/input"
	"github.com/sweeney/jack-sensor/internal/logic"
	"github.com/sweeney/jack-sensor/internal/report"
	"github.com/sweeney/jack-sensor/internal/workqueue"
)

// Fixed timings.
const (
	DebounceDetached   = 100 * time.Millisecond
	DebounceAttached   = 20 * time.Millisecond
	SettleDelay        = 500 * time.Millisecond
	HookSuppressWindow = 310 * time.Millisecond
	MicBiasSettle      = 100 * time.Millisecond
	TypeCheckSettle    = 100 * time.Millisecond
	ButtonNoiseDelay   = 200 * time.Millisecond
	ButtonSettle       = 10 * time.Millisecond
	LineOutDelay       = 300 * time.Millisecond

	// ReconfirmRetries bounds the extra read/flip/read rounds in the jack
	// edge handler.
	ReconfirmRetries = 10
)

// ErrStarted is returned by Start when the module is already running.
var ErrStarted = errors.New("headset module already started")

// Config selects the controller variant.
type Config struct {
	Platform      logic.Platform
	SpeakerNeeded bool
}

// Deps are the module's collaborators.
type Deps struct {
	GPIO     gpio.EdgeSource
	Codec    codec.Sink
	Reporter *report.Reporter
	Clock    clock.Clock
	Logger   *slog.Logger

	// OpenKeys creates the key sink for the button variant. A nil OpenKeys
	// or an error leaves the button controller running without key output.
	OpenKeys func() (input.KeySink, error)
}

// micBias is the cached mic bias state. The zero value forces the first
// MicBiasPower call to write.
type micBias int

const (
	micBiasUnknown micBias = iota
	micBiasOn
	micBiasOff
)

// Module owns the jack, line-out and hook button controllers.
type Module struct {
	cfg      Config
	variant  logic.Variant
	gpio     gpio.EdgeSource
	codec    codec.Sink
	reporter *report.Reporter
	clk      clock.Clock
	logger   *slog.Logger
	openKeys func() (input.KeySink, error)
	keys     input.KeySink

	mu        sync.Mutex
	accessory logic.AccessoryState
	suppress  bool
	// guardToken identifies the guard deadline allowed to clear suppress.
	guardToken uint64
	bias      micBias
	debounce  time.Duration
	presses   int

	// detectMu is held for a whole jack detection cycle and by
	// CheckHeadsetType.
	detectMu sync.Mutex

	speakerNeeded atomic.Bool
	initializing  atomic.Bool
	closing       atomic.Bool

	jackTimer  *debounce.Timer
	guardTimer *debounce.Timer

	jackWork    *workqueue.Work
	lineOutWork *workqueue.Work
	buttonWork  *workqueue.Work

	lifeMu  sync.Mutex
	started bool
	stopped bool
	active  active
	cancel  context.CancelFunc
	workers *errgroup.Group
}

// active records which lines were configured.
type active struct {
	jack    bool
	lineOut bool
	hook    bool
	button  bool
}

// New creates a Module. Nothing touches hardware until Start.
func New(cfg Config, deps Deps) *Module {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{
		cfg:       cfg,
		variant:   cfg.Platform.Variant(),
		gpio:      deps.GPIO,
		codec:     deps.Codec,
		reporter:  deps.Reporter,
		clk:       clk,
		logger:    logger,
		openKeys:  deps.OpenKeys,
		accessory: logic.NoDevice,
		debounce:  DebounceDetached,
	}
	m.speakerNeeded.Store(cfg.SpeakerNeeded)
	m.jackTimer = debounce.New(clk, m.onJackDebounced)
	m.guardTimer = debounce.NewWithToken(clk, m.onGuardExpired)
	m.jackWork = workqueue.New("jack", m.detect)
	m.lineOutWork = workqueue.New("lineout", m.lineOutDetect)
	m.buttonWork = workqueue.New("button", m.buttonDetect)
	return m
}

// Start registers the reporter and brings up the controllers for the
// configured platform. Only a reporter registration failure is fatal; a
// controller whose lines cannot be claimed is logged and skipped.
func (m *Module) Start() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.started {
		return ErrStarted
	}

	if err := m.reporter.Register(); err != nil {
		return fmt.Errorf("register reporter: %w", err)
	}
	m.started = true

	m.initializing.Store(true)
	defer m.initializing.Store(false)

	m.logger.Info("headset detection init", "platform", m.cfg.Platform, "variant", m.variant)

	switch m.variant {
	case logic.VariantLineOut:
		if err := m.startLineOut(); err != nil {
			m.logger.Warn("lineout detection unavailable", "error", err)
		}
	case logic.VariantButton:
		if err := m.startKeys(); err != nil {
			m.logger.Warn("key input device unavailable", "error", err)
		}
	}

	if err := m.startJack(); err != nil {
		m.logger.Warn("jack detection unavailable", "error", err)
	}
	if err := m.startHook(); err != nil {
		m.logger.Warn("hook detection unavailable", "error", err)
	}
	return nil
}

func (m *Module) startKeys() error {
	if m.openKeys == nil {
		return errors.New("no key sink configured")
	}
	keys, err := m.openKeys()
	if err != nil {
		return fmt.Errorf("create input device: %w", err)
	}
	m.keys = keys
	return nil
}

// Run runs the work items until ctx is canceled or Shutdown is called.
func (m *Module) Run(ctx context.Context) error {
	m.lifeMu.Lock()
	if m.stopped {
		m.lifeMu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	m.cancel = cancel
	m.workers = g
	act := m.active
	m.lifeMu.Unlock()
	defer cancel()

	g.Go(func() error { return m.jackWork.Run(gctx) })
	if act.lineOut {
		g.Go(func() error { return m.lineOutWork.Run(gctx) })
	}
	if act.button {
		g.Go(func() error { return m.buttonWork.Run(gctx) })
	}
	return g.Wait()
}

// Shutdown stops edge handling, cancels timers and pending work, waits for
// work in progress, removes an attached headset and releases resources.
func (m *Module) Shutdown() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.started || m.stopped {
		return nil
	}
	m.stopped = true

	m.closing.Store(true)
	if m.active.jack {
		m.gpio.Mask(gpio.LineJack)
	}
	if m.active.lineOut {
		m.gpio.Mask(gpio.LineLineOut)
	}
	if m.active.button {
		m.gpio.Mask(gpio.LineHook)
	}

	m.jackTimer.Stop()
	m.guardTimer.Stop()
	m.jackWork.Cancel()
	m.lineOutWork.Cancel()
	m.buttonWork.Cancel()

	if m.cancel != nil {
		m.cancel()
		m.workers.Wait()
		// Work that was running may have re-armed the guard.
		m.guardTimer.Stop()
	}

	// A run in progress on a test goroutine finishes before teardown.
	m.detectMu.Lock()
	if m.Accessory() == logic.Headset {
		m.removeHeadset()
	}
	m.detectMu.Unlock()

	var errs []error
	if m.keys != nil {
		if err := m.keys.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close key sink: %w", err))
		}
	}
	if err := m.gpio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gpio: %w", err))
	}
	m.reporter.Unregister()
	m.logger.Info("headset detection stopped")
	return errors.Join(errs...)
}

// Accessory returns the current accessory classification.
func (m *Module) Accessory() logic.AccessoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessory
}

// DebounceDuration returns the delay used for the next jack debounce.
func (m *Module) DebounceDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debounce
}

// HookSuppressed reports whether hook edges are currently dropped.
func (m *Module) HookSuppressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppress
}

// MicBiasOn reports the cached mic bias state.
func (m *Module) MicBiasOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bias == micBiasOn
}

// Presses returns the diagnostic count of hook edges since the last
// button work run.
func (m *Module) Presses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presses
}

// SetSpeakerNeeded sets whether removing a line-out cable re-enables the
// speaker path.
func (m *Module) SetSpeakerNeeded(need bool) {
	m.speakerNeeded.Store(need)
}

// SpeakerNeeded reports the speaker needed flag.
func (m *Module) SpeakerNeeded() bool {
	return m.speakerNeeded.Load()
}

// Variant returns the controller variant selected by the platform.
func (m *Module) Variant() logic.Variant {
	return m.variant
}

// MicBiasPower switches mic bias and the analog inputs on or off. A call
// that matches the cached state writes nothing.
func (m *Module) MicBiasPower(on bool) {
	want := micBiasOff
	if on {
		want = micBiasOn
	}

	m.mu.Lock()
	if m.bias == want {
		m.mu.Unlock()
		return
	}
	m.bias = want
	m.mu.Unlock()

	if on {
		m.logger.Debug("mic bias on")
		m.write(codec.RegMicBias, codec.MicBiasOn)
		m.write(codec.RegAnalogInputs, codec.AnalogInputsOn)
		return
	}
	m.logger.Debug("mic bias off")
	m.write(codec.RegMicBias, codec.Off)
	m.write(codec.RegAnalogInputs, codec.Off)
}

// write performs one codec write. Failures are logged and otherwise ignored.
func (m *Module) write(reg codec.Register, val uint16) {
	if err := m.codec.Write(reg, val); err != nil {
		m.logger.Warn("codec write failed", "reg", reg.String(), "error", err)
	}
}

func (m *Module) publish(event logic.Event) {
	event.Timestamp = m.clk.Now()
	m.reporter.Report(event)
}

// level reads line, logging failures.
func (m *Module) level(line gpio.Line) (int, bool) {
	v, err := m.gpio.Level(line)
	if err != nil {
		m.logger.Warn("gpio read failed", "line", line, "error", err)
		return 0, false
	}
	return v, true
}
