package headset

import (
	"fmt"

	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/logic"
)

// startJack watches the presence line and applies the initial
// classification.
func (m *Module) startJack() error {
	if err := m.gpio.Watch(gpio.LineJack, m.onJackEdge); err != nil {
		return fmt.Errorf("watch jack line: %w", err)
	}
	m.active.jack = true

	level, err := m.gpio.Level(gpio.LineJack)
	if err != nil {
		return fmt.Errorf("read jack line: %w", err)
	}

	m.detectMu.Lock()
	defer m.detectMu.Unlock()
	if logic.JackPresent(level) {
		m.insertHeadset()
	} else {
		m.removeHeadset()
	}
	return nil
}

// onJackEdge runs on every presence line edge. It must not block.
func (m *Module) onJackEdge(gpio.Line) {
	if m.closing.Load() {
		return
	}
	level, ok := m.reconfirmJack()
	if !ok {
		return
	}

	m.mu.Lock()
	published := m.accessory
	d := m.debounce
	m.mu.Unlock()

	if logic.NeedsDebounce(published, level) {
		m.jackTimer.Arm(d)
	}
}

// reconfirmJack reads the presence line, points the trigger at the opposite
// edge and reads again, until two reads agree or the retry budget runs out.
func (m *Module) reconfirmJack() (int, bool) {
	var v1, v2 int
	for retry := 0; ; retry++ {
		var ok bool
		if v1, ok = m.level(gpio.LineJack); !ok {
			return 0, false
		}
		if err := m.gpio.SetTrigger(gpio.LineJack, logic.ReconfirmTrigger(v1)); err != nil {
			m.logger.Warn("set jack trigger failed", "error", err)
		}
		if v2, ok = m.level(gpio.LineJack); !ok {
			return 0, false
		}
		if v1 == v2 || retry >= ReconfirmRetries {
			return v2, true
		}
	}
}

func (m *Module) onJackDebounced() {
	if m.closing.Load() {
		return
	}
	m.jackWork.Schedule()
}

// onGuardExpired clears the hook-suppress flag, unless a newer cycle has
// set it again since this deadline was armed.
func (m *Module) onGuardExpired(token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != m.guardToken {
		return
	}
	m.suppress = false
	m.guardToken = 0
}

// suppressHook opens the hook-suppress window for a new jack cycle.
func (m *Module) suppressHook() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guardTimer.Stop()
	m.guardToken = 0
	m.suppress = true
}

// armGuard schedules the end of the hook-suppress window.
func (m *Module) armGuard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guardToken = m.guardTimer.Arm(HookSuppressWindow)
}

// detect is the jack work handler: settle, re-read and apply the result.
func (m *Module) detect() {
	m.detectMu.Lock()
	defer m.detectMu.Unlock()

	m.MicBiasPower(false)

	m.suppressHook()

	if err := m.gpio.Mask(gpio.LineJack); err != nil {
		m.logger.Warn("mask jack line failed", "error", err)
	}
	m.clk.Sleep(SettleDelay)
	if !m.closing.Load() {
		if err := m.gpio.Unmask(gpio.LineJack); err != nil {
			m.logger.Warn("unmask jack line failed", "error", err)
		}
	}

	published := m.Accessory()

	level, ok := m.level(gpio.LineJack)
	if !ok {
		m.armGuard()
		return
	}
	if !logic.JackPresent(level) {
		if published == logic.Headset {
			m.removeHeadset()
		}
		m.armGuard()
		return
	}

	again, ok := m.level(gpio.LineJack)
	if !ok || !logic.JackPresent(again) {
		m.logger.Info("jack bounced, not a headset")
		m.armGuard()
		return
	}

	m.armGuard()
	if published == logic.NoDevice {
		m.mu.Lock()
		m.presses = 0
		m.mu.Unlock()
		m.insertHeadset()
	} else {
		m.MicBiasPower(true)
	}
}

// insertHeadset powers the microphone, enables the headphone output and
// publishes Headset. Caller holds detectMu.
func (m *Module) insertHeadset() {
	m.MicBiasPower(true)
	m.clk.Sleep(MicBiasSettle)
	m.write(codec.RegHPOutput, codec.HPOutputOn)

	m.mu.Lock()
	m.accessory = logic.Headset
	m.debounce = DebounceAttached
	m.mu.Unlock()

	m.logger.Info("headset inserted")
	m.publish(logic.Event{Type: logic.EventHeadsetInserted, Accessory: logic.Headset})
}

// removeHeadset reverses insertHeadset. Caller holds detectMu.
func (m *Module) removeHeadset() {
	m.MicBiasPower(false)
	m.write(codec.RegHPOutput, codec.Off)

	m.mu.Lock()
	m.accessory = logic.NoDevice
	m.debounce = DebounceDetached
	m.mu.Unlock()

	m.logger.Info("headset removed")
	m.publish(logic.Event{Type: logic.EventHeadsetRemoved, Accessory: logic.NoDevice})
}

// CheckHeadsetType reports whether the attached accessory has a microphone.
// With a headset attached the mic bias is power cycled first. The hook line
// reads high for an accessory without a microphone. It waits for any jack
// detection cycle in progress.
func (m *Module) CheckHeadsetType() logic.HeadsetType {
	m.detectMu.Lock()
	defer m.detectMu.Unlock()

	if m.Accessory() == logic.Headset {
		m.MicBiasPower(false)
		m.MicBiasPower(true)
	}
	m.clk.Sleep(TypeCheckSettle)

	t := logic.HeadsetNone
	if jack, ok := m.level(gpio.LineJack); ok && logic.JackPresent(jack) {
		if hook, ok := m.level(gpio.LineHook); ok {
			t = logic.ClassifyHeadsetType(jack, hook)
		}
	}

	m.logger.Info("headset type", "type", t)
	m.publish(logic.Event{Type: logic.EventHeadsetType, Accessory: m.Accessory(), HeadsetType: t})
	return t
}
