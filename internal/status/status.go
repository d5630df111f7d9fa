// Package status provides a thread-safe status tracker for the jack-sensor daemon.
// It receives every reported event and is read by the HTTP handlers and the
// MQTT lifecycle messages.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Platform      int
	Chip          string
	JackLine      int
	HookLine      int
	LineOutLine   int
	SpeakerNeeded bool
	Broker        string
	TopicPrefix   string
	HTTPAddr      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Accessory     logic.AccessoryState
	LineOut       logic.LineOutState
	HeadsetType   logic.HeadsetType
	LastEvent     logic.EventType
	LastEventAt   time.Time
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// JackAlive reports whether a headset is attached.
func (s Snapshot) JackAlive() bool {
	return s.Accessory == logic.Headset
}

// LineOutAlive reports whether a line-out cable is attached.
func (s Snapshot) LineOutAlive() bool {
	return s.LineOut == logic.LineOutPresent
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Publish records event. It never fails.
func (t *Tracker) Publish(event logic.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Type {
	case logic.EventHeadsetInserted, logic.EventHeadsetRemoved:
		t.snap.Accessory = event.Accessory
	case logic.EventLineOutInserted, logic.EventLineOutRemoved:
		t.snap.LineOut = event.LineOut
	case logic.EventHeadsetType:
		t.snap.HeadsetType = event.HeadsetType
	}
	t.snap.LastEvent = event.Type
	t.snap.LastEventAt = event.Timestamp
	t.snap.Counts.Count(event.Type)
	return nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
