package headset

import (
	"fmt"

	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/input"
	"github.com/sweeney/jack-sensor/internal/logic"
)

// startHook claims the hook line. Only the button variant watches it for
// edges; the others read it for headset type checks.
func (m *Module) startHook() error {
	if m.variant != logic.VariantButton {
		if err := m.gpio.Request(gpio.LineHook); err != nil {
			return fmt.Errorf("request hook line: %w", err)
		}
		m.active.hook = true
		return nil
	}

	if err := m.gpio.Watch(gpio.LineHook, m.onButtonEdge); err != nil {
		return fmt.Errorf("watch hook line: %w", err)
	}
	m.active.hook = true
	m.active.button = true
	return nil
}

// onButtonEdge runs on every hook line edge. It must not block.
func (m *Module) onButtonEdge(gpio.Line) {
	if m.closing.Load() || m.initializing.Load() {
		return
	}
	m.mu.Lock()
	m.presses++
	m.mu.Unlock()
	m.buttonWork.Schedule()
}

// buttonDetect is the hook button work handler.
func (m *Module) buttonDetect() {
	defer func() {
		m.mu.Lock()
		m.presses = 0
		m.mu.Unlock()
	}()

	jack, ok := m.level(gpio.LineJack)
	if m.Accessory() == logic.NoDevice || !ok || !logic.JackPresent(jack) {
		m.clk.Sleep(ButtonNoiseDelay)
		return
	}

	m.clk.Sleep(ButtonSettle)

	if jack, ok := m.level(gpio.LineJack); !ok || !logic.JackPresent(jack) {
		return
	}
	if m.Accessory() != logic.Headset {
		return
	}
	if m.HookSuppressed() {
		m.logger.Debug("hook edge suppressed")
		return
	}

	hook, ok := m.level(gpio.LineHook)
	if !ok {
		return
	}
	if !logic.HookAsserted(hook) {
		m.reportKey(false)
		return
	}

	m.reportKey(true)
	if hook, ok := m.level(gpio.LineHook); ok && !logic.HookAsserted(hook) {
		m.reportKey(false)
	}
}

func (m *Module) reportKey(down bool) {
	typ := logic.EventHookUp
	if down {
		typ = logic.EventHookDown
	}
	if m.keys != nil {
		if err := m.keys.ReportKey(input.KeyHeadsetHook, down); err != nil {
			m.logger.Warn("report key failed", "down", down, "error", err)
		}
	}
	m.logger.Debug("hook key", "event", typ)
	m.publish(logic.Event{Type: typ, Accessory: m.Accessory()})
}
