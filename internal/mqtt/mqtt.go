// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "audio/headset"

// Topics holds the MQTT topics derived from a prefix.
type Topics struct {
	State  string // retained, latest accessory state
	Events string // every event, including hook presses
	System string // lifecycle events and LWT
}

// NewTopics derives the topic set for prefix. An empty prefix uses DefaultPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		State:  prefix + "/state",
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a headset event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// IsStateChange reports whether t changes the retained accessory state.
// Hook and headset-type events go to the events topic only.
func IsStateChange(t logic.EventType) bool {
	switch t {
	case logic.EventHeadsetInserted, logic.EventHeadsetRemoved,
		logic.EventLineOutInserted, logic.EventLineOutRemoved:
		return true
	}
	return false
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Headset HeadsetPayload `json:"headset"`
}

// HeadsetPayload contains the headset event details.
type HeadsetPayload struct {
	Timestamp    string `json:"timestamp"`
	Event        string `json:"event"`
	Name         string `json:"name"`
	State        int    `json:"state"`
	LineOut      string `json:"lineout,omitempty"`
	JackAlive    bool   `json:"jack_alive"`
	LineOutAlive bool   `json:"lineout_alive"`
	HeadsetType  string `json:"headset_type,omitempty"`
}

// FormatPayload creates the JSON payload for a headset event. lineOut is the
// last known line-out state; it is used when the event does not carry one.
func FormatPayload(event logic.Event, lineOut logic.LineOutState) ([]byte, error) {
	if event.LineOut != logic.LineOutUnknown {
		lineOut = event.LineOut
	}
	payload := Payload{
		Headset: HeadsetPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Event:        string(event.Type),
			Name:         event.Accessory.Name(),
			State:        event.Accessory.Value(),
			LineOut:      string(lineOut),
			JackAlive:    event.Accessory == logic.Headset,
			LineOutAlive: lineOut == logic.LineOutPresent,
			HeadsetType:  string(event.HeadsetType),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// lineOutFor returns the line-out state to remember after event.
func lineOutFor(event logic.Event, prev logic.LineOutState) logic.LineOutState {
	switch event.Type {
	case logic.EventLineOutInserted, logic.EventLineOutRemoved:
		return event.LineOut
	}
	return prev
}
