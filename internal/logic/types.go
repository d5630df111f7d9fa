// Package logic contains the pure decision logic for headset jack detection.
// This package has NO external dependencies (no GPIO, codec, MQTT, OS, or time.Sleep).
// Line levels and timestamps are always passed in.
package logic

import "time"

// AccessoryState is the published classification of the headset jack.
type AccessoryState int

const (
	NoDevice AccessoryState = 0
	Headset  AccessoryState = 2
)

// Name returns the switch name readout ("No Device" or "Headset").
func (s AccessoryState) Name() string {
	switch s {
	case Headset:
		return "Headset"
	default:
		return "No Device"
	}
}

// Value returns the switch state readout (0 or 2).
func (s AccessoryState) Value() int {
	return int(s)
}

func (s AccessoryState) String() string {
	return s.Name()
}

// LineOutState is the published classification of the line-out line.
type LineOutState string

const (
	LineOutUnknown LineOutState = ""
	LineOutPresent LineOutState = "PRESENT"
	LineOutAbsent  LineOutState = "ABSENT"
)

// HeadsetType is the result of a headset type query.
type HeadsetType string

const (
	HeadsetNone    HeadsetType = "NONE"
	HeadsetNoMic   HeadsetType = "NO_MIC"
	HeadsetWithMic HeadsetType = "WITH_MIC"
)

// HasMic reports whether the accessory carries a microphone.
func (t HeadsetType) HasMic() bool {
	return t == HeadsetWithMic
}

// EventType identifies what an Event reports.
type EventType string

const (
	EventHeadsetInserted EventType = "HEADSET_IN"
	EventHeadsetRemoved  EventType = "HEADSET_OUT"
	EventLineOutInserted EventType = "LINEOUT_IN"
	EventLineOutRemoved  EventType = "LINEOUT_OUT"
	EventHookDown        EventType = "HOOK_DOWN"
	EventHookUp          EventType = "HOOK_UP"
	EventHeadsetType     EventType = "HEADSET_TYPE"
)

// Event is a state change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Accessory AccessoryState
	LineOut   LineOutState
	// HeadsetType is only set for EventHeadsetType.
	HeadsetType HeadsetType
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Insertions   int
	Removals     int
	LineOutIn    int
	LineOutOut   int
	HookPresses  int
	HookReleases int
}

// Count adds the event to the counters.
func (c *EventCounts) Count(t EventType) {
	switch t {
	case EventHeadsetInserted:
		c.Insertions++
	case EventHeadsetRemoved:
		c.Removals++
	case EventLineOutInserted:
		c.LineOutIn++
	case EventLineOutRemoved:
		c.LineOutOut++
	case EventHookDown:
		c.HookPresses++
	case EventHookUp:
		c.HookReleases++
	}
}
