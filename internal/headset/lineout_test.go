package headset

import (
	"testing"

	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/logic"
)

func TestLineOutInitialSample(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		wantAlive bool
		wantEvent logic.EventType
	}{
		{"present", 0, true, logic.EventLineOutInserted},
		{"absent", 1, false, logic.EventLineOutRemoved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, logic.PlatformLineOut)
			h.src.SetLevel(gpio.LineLineOut, tt.level)
			h.start(t)

			if h.rep.LineOutAlive() != tt.wantAlive {
				t.Errorf("LineOutAlive: got %v, want %v", h.rep.LineOutAlive(), tt.wantAlive)
			}
			if h.countEvents(tt.wantEvent) != 1 {
				t.Errorf("events: got %v", h.events())
			}
			if got := h.sink.WritesTo(codec.RegSpeakerMixer); len(got) != 0 {
				t.Errorf("initial sample should not touch the speaker path: %v", got)
			}
		})
	}
}

func TestLineOutInsertedMutesSpeaker(t *testing.T) {
	h := newHarness(t, logic.PlatformLineOut)
	h.start(t)
	h.sink.Reset()
	h.clk.Sleeps = nil

	h.src.Drive(gpio.LineLineOut, 0)
	if !h.m.lineOutWork.RunPending() {
		t.Fatal("lineout work not scheduled")
	}

	if len(h.clk.Sleeps) != 1 || h.clk.Sleeps[0] != LineOutDelay {
		t.Errorf("sleeps: got %v", h.clk.Sleeps)
	}
	assertWrites(t, h.sink.Writes(), []codec.Write{
		{Reg: codec.RegSpeakerMixer, Val: codec.Off},
		{Reg: codec.RegSpeakerEnable, Val: codec.Off},
		{Reg: codec.RegGPIO3, Val: codec.Off},
	})
	if !h.rep.LineOutAlive() || h.rep.Readout().LineOut != logic.LineOutPresent {
		t.Errorf("readout: %+v", h.rep.Readout())
	}
	if h.countEvents(logic.EventLineOutInserted) != 1 {
		t.Errorf("events: got %v", h.events())
	}
}

func TestLineOutRemovedEnablesSpeaker(t *testing.T) {
	h := newHarness(t, logic.PlatformLineOut)
	h.src.SetLevel(gpio.LineLineOut, 0)
	h.start(t)
	h.m.SetSpeakerNeeded(true)
	h.sink.Reset()

	h.src.Drive(gpio.LineLineOut, 1)
	h.m.lineOutWork.RunPending()

	vol := uint16(0x3D | codec.VolumeUpdate)
	assertWrites(t, h.sink.Writes(), []codec.Write{
		{Reg: codec.RegSpeakerMixer, Val: codec.SpeakerMixerOn},
		{Reg: codec.RegSpeakerVolumeL, Val: vol},
		{Reg: codec.RegSpeakerVolumeR, Val: vol},
		{Reg: codec.RegSpeakerEnable, Val: codec.SpeakerEnableOn},
		{Reg: codec.RegGPIO3, Val: codec.GPIO3SpeakerOn},
	})
	if h.rep.LineOutAlive() {
		t.Error("lineout alive should be cleared")
	}
	if h.countEvents(logic.EventLineOutRemoved) != 1 {
		t.Errorf("events: got %v", h.events())
	}
}

func TestLineOutRemovedSpeakerNotNeeded(t *testing.T) {
	h := newHarness(t, logic.PlatformLineOut)
	h.src.SetLevel(gpio.LineLineOut, 0)
	h.start(t)
	h.sink.Reset()

	if h.m.SpeakerNeeded() {
		t.Fatal("speaker needed should default to false")
	}
	h.src.Drive(gpio.LineLineOut, 1)
	h.m.lineOutWork.RunPending()

	if len(h.sink.Writes()) != 0 {
		t.Errorf("unexpected writes: %+v", h.sink.Writes())
	}
	if !h.rep.LineOutAlive() {
		t.Error("lineout alive should keep its last published value")
	}
	if h.countEvents(logic.EventLineOutRemoved) != 0 {
		t.Errorf("events: got %v", h.events())
	}
}

func TestLineOutEdgesCoalesce(t *testing.T) {
	h := newHarness(t, logic.PlatformLineOut)
	h.start(t)

	h.src.Drive(gpio.LineLineOut, 0)
	h.src.Drive(gpio.LineLineOut, 1)
	h.src.Drive(gpio.LineLineOut, 0)

	if !h.m.lineOutWork.RunPending() {
		t.Fatal("lineout work not scheduled")
	}
	if h.m.lineOutWork.RunPending() {
		t.Error("edges while pending should coalesce")
	}
	if h.countEvents(logic.EventLineOutInserted) != 1 {
		t.Errorf("events: got %v", h.events())
	}
}

func TestLineOutOnlyOnLineOutPlatform(t *testing.T) {
	for _, p := range []logic.Platform{0, logic.PlatformButton} {
		h := newHarness(t, p)
		h.start(t)
		if h.src.Watched(gpio.LineLineOut) {
			t.Errorf("platform %s: lineout line should not be watched", p)
		}
	}
}
