package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/jack-sensor/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Platform: 102, Chip: "gpiochip0", JackLine: 178, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Platform != 102 {
		t.Errorf("Config.Platform: got %d, want 102", snap.Config.Platform)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Accessory != logic.NoDevice {
		t.Errorf("Accessory: got %s, want No Device", snap.Accessory)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestPublishUpdatesState(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	tests := []struct {
		name   string
		events []logic.Event
		check  func(t *testing.T, s Snapshot)
	}{
		{
			name:   "headset in",
			events: []logic.Event{{Timestamp: at, Type: logic.EventHeadsetInserted, Accessory: logic.Headset}},
			check: func(t *testing.T, s Snapshot) {
				if s.Accessory != logic.Headset || !s.JackAlive() {
					t.Errorf("accessory: got %s", s.Accessory)
				}
				if s.Counts.Insertions != 1 {
					t.Errorf("Insertions: got %d", s.Counts.Insertions)
				}
				if s.LastEvent != logic.EventHeadsetInserted || !s.LastEventAt.Equal(at) {
					t.Errorf("last event: %s at %v", s.LastEvent, s.LastEventAt)
				}
			},
		},
		{
			name: "headset in and out",
			events: []logic.Event{
				{Type: logic.EventHeadsetInserted, Accessory: logic.Headset},
				{Type: logic.EventHeadsetRemoved, Accessory: logic.NoDevice},
			},
			check: func(t *testing.T, s Snapshot) {
				if s.Accessory != logic.NoDevice || s.JackAlive() {
					t.Errorf("accessory: got %s", s.Accessory)
				}
				if s.Counts.Insertions != 1 || s.Counts.Removals != 1 {
					t.Errorf("counts: %+v", s.Counts)
				}
			},
		},
		{
			name:   "lineout in",
			events: []logic.Event{{Type: logic.EventLineOutInserted, LineOut: logic.LineOutPresent}},
			check: func(t *testing.T, s Snapshot) {
				if !s.LineOutAlive() || s.Counts.LineOutIn != 1 {
					t.Errorf("lineout: %s counts %+v", s.LineOut, s.Counts)
				}
			},
		},
		{
			name: "hook press keeps accessory",
			events: []logic.Event{
				{Type: logic.EventHeadsetInserted, Accessory: logic.Headset},
				{Type: logic.EventHookDown, Accessory: logic.Headset},
				{Type: logic.EventHookUp, Accessory: logic.Headset},
			},
			check: func(t *testing.T, s Snapshot) {
				if s.Accessory != logic.Headset {
					t.Errorf("accessory: got %s", s.Accessory)
				}
				if s.Counts.HookPresses != 1 || s.Counts.HookReleases != 1 {
					t.Errorf("counts: %+v", s.Counts)
				}
			},
		},
		{
			name:   "headset type",
			events: []logic.Event{{Type: logic.EventHeadsetType, HeadsetType: logic.HeadsetNoMic}},
			check: func(t *testing.T, s Snapshot) {
				if s.HeadsetType != logic.HeadsetNoMic {
					t.Errorf("HeadsetType: got %s", s.HeadsetType)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(time.Now(), Config{})
			for _, e := range tt.events {
				if err := tr.Publish(e); err != nil {
					t.Fatalf("Publish: %v", err)
				}
			}
			tt.check(t, tr.Snapshot())
		})
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Publish(logic.Event{Type: logic.EventHeadsetInserted, Accessory: logic.Headset})

	snap1 := tr.Snapshot()

	tr.Publish(logic.Event{Type: logic.EventHeadsetRemoved, Accessory: logic.NoDevice})

	if snap1.Accessory != logic.Headset {
		t.Error("snapshot should be a copy; Accessory was modified")
	}
	if snap1.Counts.Removals != 0 {
		t.Error("snapshot should be a copy; Counts were modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Accessory:     logic.Headset,
		LineOut:       logic.LineOutAbsent,
		LastEvent:     logic.EventHeadsetInserted,
		LastEventAt:   start.Add(time.Minute),
		Counts:        logic.EventCounts{Insertions: 5, Removals: 4, HookPresses: 2},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Platform: 101, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Name != "Headset" || parsed.Status.State != 2 {
		t.Errorf("readout: got (%q, %d), want (Headset, 2)", parsed.Status.Name, parsed.Status.State)
	}
	if !parsed.Status.JackAlive || parsed.Status.LineOutAlive {
		t.Errorf("flags: jack=%v lineout=%v", parsed.Status.JackAlive, parsed.Status.LineOutAlive)
	}
	if parsed.Status.LineOut != "ABSENT" {
		t.Errorf("LineOut: got %q, want ABSENT", parsed.Status.LineOut)
	}
	if parsed.Status.LastEvent != "HEADSET_IN" || parsed.Status.LastEventAt != "2026-01-01T00:01:00Z" {
		t.Errorf("last event: %q at %q", parsed.Status.LastEvent, parsed.Status.LastEventAt)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Insertions != 5 || parsed.Status.Counts.HookPresses != 2 {
		t.Errorf("Counts: %+v", parsed.Status.Counts)
	}
	if parsed.Status.Config.Platform != 101 {
		t.Errorf("Config.Platform: got %d", parsed.Status.Config.Platform)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})

	if status["name"] != "No Device" {
		t.Errorf("name: got %v, want No Device", status["name"])
	}
	if status["lineout"] != "UNKNOWN" || status["headset_type"] != "UNKNOWN" {
		t.Errorf("lineout/headset_type: got %v/%v", status["lineout"], status["headset_type"])
	}
	if _, exists := status["last_event_at"]; exists {
		t.Error("last_event_at should be omitted before any event")
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Accessory: logic.Headset,
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 1800 {
		t.Errorf("UptimeSeconds: got %d, want 1800", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Publish(logic.Event{Type: logic.EventHookDown})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()

	if got := tr.Snapshot().Counts.HookPresses; got != 1000 {
		t.Errorf("HookPresses: got %d, want 1000", got)
	}
}
