package headset

import (
	"fmt"

	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/logic"
)

// startLineOut watches the line-out line and publishes its initial state.
// The codec is left alone until the first edge.
func (m *Module) startLineOut() error {
	if err := m.gpio.Watch(gpio.LineLineOut, m.onLineOutEdge); err != nil {
		return fmt.Errorf("watch lineout line: %w", err)
	}
	m.active.lineOut = true

	level, err := m.gpio.Level(gpio.LineLineOut)
	if err != nil {
		return fmt.Errorf("read lineout line: %w", err)
	}
	state := logic.ClassifyLineOut(level)
	typ := logic.EventLineOutRemoved
	if state == logic.LineOutPresent {
		typ = logic.EventLineOutInserted
	}
	m.publish(logic.Event{Type: typ, Accessory: m.Accessory(), LineOut: state})
	return nil
}

func (m *Module) onLineOutEdge(gpio.Line) {
	if m.closing.Load() {
		return
	}
	m.lineOutWork.Schedule()
}

// lineOutDetect is the line-out work handler.
func (m *Module) lineOutDetect() {
	m.clk.Sleep(LineOutDelay)

	level, ok := m.level(gpio.LineLineOut)
	if !ok {
		return
	}

	if logic.LineOutPresentLevel(level) {
		m.logger.Info("lineout inserted")
		m.publish(logic.Event{Type: logic.EventLineOutInserted, Accessory: m.Accessory(), LineOut: logic.LineOutPresent})
		m.write(codec.RegSpeakerMixer, codec.Off)
		m.write(codec.RegSpeakerEnable, codec.Off)
		m.write(codec.RegGPIO3, codec.Off)
		return
	}

	if !m.speakerNeeded.Load() {
		m.logger.Debug("lineout removed, speaker not needed")
		return
	}

	m.logger.Info("lineout removed")
	m.publish(logic.Event{Type: logic.EventLineOutRemoved, Accessory: m.Accessory(), LineOut: logic.LineOutAbsent})
	m.write(codec.RegSpeakerMixer, codec.SpeakerMixerOn)
	if preset, ok := m.cfg.Platform.SpeakerPreset(); ok {
		m.write(codec.RegSpeakerVolumeL, preset|codec.VolumeUpdate)
		m.write(codec.RegSpeakerVolumeR, preset|codec.VolumeUpdate)
	}
	m.write(codec.RegSpeakerEnable, codec.SpeakerEnableOn)
	m.write(codec.RegGPIO3, codec.GPIO3SpeakerOn)
}
