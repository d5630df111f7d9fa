package headset

import (
	"errors"
	"testing"

	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/input"
	"github.com/sweeney/jack-sensor/internal/logic"
)

func newButtonHarness(t *testing.T, jack int) *harness {
	t.Helper()
	h := newHarness(t, logic.PlatformButton)
	h.src.SetLevel(gpio.LineJack, jack)
	h.src.SetLevel(gpio.LineHook, 0)
	h.start(t)
	return h
}

func assertKeys(t *testing.T, got, want []input.KeyEvent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("keys: got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

var (
	keyDown = input.KeyEvent{Code: input.KeyHeadsetHook, Down: true}
	keyUp   = input.KeyEvent{Code: input.KeyHeadsetHook, Down: false}
)

func TestButtonPressAndRelease(t *testing.T) {
	h := newButtonHarness(t, 0)

	h.src.Drive(gpio.LineHook, 1)
	if h.m.Presses() != 1 {
		t.Errorf("presses: got %d, want 1", h.m.Presses())
	}
	if !h.m.buttonWork.RunPending() {
		t.Fatal("button work not scheduled")
	}
	assertKeys(t, h.keys.Events(), []input.KeyEvent{keyDown})
	if h.m.Presses() != 0 {
		t.Error("press counter should reset after each run")
	}

	h.src.Drive(gpio.LineHook, 0)
	h.m.buttonWork.RunPending()
	assertKeys(t, h.keys.Events(), []input.KeyEvent{keyDown, keyUp})

	if h.countEvents(logic.EventHookDown) != 1 || h.countEvents(logic.EventHookUp) != 1 {
		t.Errorf("events: got %v", h.events())
	}
}

func TestButtonShortPressReportsDownAndUp(t *testing.T) {
	h := newButtonHarness(t, 0)

	h.src.ScriptReads(gpio.LineHook, 1, 0)
	h.src.Edge(gpio.LineHook)
	h.m.buttonWork.RunPending()

	assertKeys(t, h.keys.Events(), []input.KeyEvent{keyDown, keyUp})
}

func TestButtonSuppressedAfterJackCycle(t *testing.T) {
	h := newButtonHarness(t, 1)
	h.insert(t)

	h.src.Drive(gpio.LineHook, 1)
	h.m.buttonWork.RunPending()
	if len(h.keys.Events()) != 0 {
		t.Fatalf("press inside the suppress window was reported: %+v", h.keys.Events())
	}
	if h.m.Presses() != 0 {
		t.Error("press counter should reset on a dropped press")
	}

	h.clk.Advance(HookSuppressWindow)
	if h.m.HookSuppressed() {
		t.Fatal("suppress window should have expired")
	}

	h.src.Edge(gpio.LineHook)
	h.m.buttonWork.RunPending()
	assertKeys(t, h.keys.Events(), []input.KeyEvent{keyDown})
}

func TestButtonNoisePathWithoutHeadset(t *testing.T) {
	h := newButtonHarness(t, 1)
	h.clk.Sleeps = nil

	h.src.Drive(gpio.LineHook, 1)
	h.m.buttonWork.RunPending()

	if len(h.keys.Events()) != 0 {
		t.Errorf("unexpected keys: %+v", h.keys.Events())
	}
	if len(h.clk.Sleeps) != 1 || h.clk.Sleeps[0] != ButtonNoiseDelay {
		t.Errorf("sleeps: got %v", h.clk.Sleeps)
	}
	if h.m.Presses() != 0 {
		t.Error("press counter should reset")
	}
}

func TestButtonJackPulledDuringSettle(t *testing.T) {
	h := newButtonHarness(t, 0)
	h.clk.Sleeps = nil

	// Present on the first check, gone after the settle delay.
	h.src.ScriptReads(gpio.LineJack, 0, 1)
	h.src.Drive(gpio.LineHook, 1)
	h.m.buttonWork.RunPending()

	if len(h.keys.Events()) != 0 {
		t.Errorf("unexpected keys: %+v", h.keys.Events())
	}
	if len(h.clk.Sleeps) != 1 || h.clk.Sleeps[0] != ButtonSettle {
		t.Errorf("sleeps: got %v", h.clk.Sleeps)
	}
}

func TestButtonIgnoredWhileInitializing(t *testing.T) {
	h := newButtonHarness(t, 0)

	h.m.initializing.Store(true)
	h.src.Drive(gpio.LineHook, 1)
	if h.m.buttonWork.Pending() || h.m.Presses() != 0 {
		t.Error("edges during initialization should be dropped before queueing")
	}
}

func TestButtonWithoutKeySink(t *testing.T) {
	h := newHarness(t, logic.PlatformButton)
	h.m.openKeys = func() (input.KeySink, error) { return nil, errors.New("no uinput") }
	h.src.SetLevel(gpio.LineJack, 0)
	h.src.SetLevel(gpio.LineHook, 0)
	h.start(t)

	if !h.src.Watched(gpio.LineHook) {
		t.Fatal("button detection should run without a key sink")
	}
	h.src.Drive(gpio.LineHook, 1)
	h.m.buttonWork.RunPending()

	if h.countEvents(logic.EventHookDown) != 1 {
		t.Errorf("events: got %v", h.events())
	}
	if err := h.m.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestButtonKeyErrorStillPublishes(t *testing.T) {
	h := newButtonHarness(t, 0)
	h.keys.ReportError = errors.New("device gone")

	h.src.Drive(gpio.LineHook, 1)
	h.m.buttonWork.RunPending()

	if h.countEvents(logic.EventHookDown) != 1 {
		t.Errorf("events: got %v", h.events())
	}
}

func TestHookWatchedOnlyOnButtonPlatform(t *testing.T) {
	h := newHarness(t, logic.PlatformLineOut)
	h.start(t)
	if h.src.Watched(gpio.LineHook) {
		t.Error("hook line should not be watched")
	}
	if h.src.Edge(gpio.LineHook) {
		t.Error("no handler expected on the hook line")
	}
}
