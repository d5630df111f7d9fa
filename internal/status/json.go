package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Name          string       `json:"name"`
	State         int          `json:"state"`
	LineOut       string       `json:"lineout"`
	HeadsetType   string       `json:"headset_type"`
	JackAlive     bool         `json:"jack_alive"`
	LineOutAlive  bool         `json:"lineout_alive"`
	LastEvent     string       `json:"last_event,omitempty"`
	LastEventAt   string       `json:"last_event_at,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Insertions   int `json:"headset_in"`
	Removals     int `json:"headset_out"`
	LineOutIn    int `json:"lineout_in"`
	LineOutOut   int `json:"lineout_out"`
	HookPresses  int `json:"hook_down"`
	HookReleases int `json:"hook_up"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Platform      int    `json:"platform"`
	Chip          string `json:"chip"`
	JackLine      int    `json:"jack_line"`
	HookLine      int    `json:"hook_line"`
	LineOutLine   int    `json:"lineout_line"`
	SpeakerNeeded bool   `json:"speaker_needed"`
	Broker        string `json:"broker"`
	TopicPrefix   string `json:"topic_prefix"`
	HTTPAddr      string `json:"http_addr"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Name:          snap.Accessory.Name(),
		State:         snap.Accessory.Value(),
		LineOut:       orUnknown(string(snap.LineOut)),
		HeadsetType:   orUnknown(string(snap.HeadsetType)),
		JackAlive:     snap.JackAlive(),
		LineOutAlive:  snap.LineOutAlive(),
		LastEvent:     string(snap.LastEvent),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Insertions:   snap.Counts.Insertions,
			Removals:     snap.Counts.Removals,
			LineOutIn:    snap.Counts.LineOutIn,
			LineOutOut:   snap.Counts.LineOutOut,
			HookPresses:  snap.Counts.HookPresses,
			HookReleases: snap.Counts.HookReleases,
		},
		Config: ConfigJSON{
			Platform:      snap.Config.Platform,
			Chip:          snap.Config.Chip,
			JackLine:      snap.Config.JackLine,
			HookLine:      snap.Config.HookLine,
			LineOutLine:   snap.Config.LineOutLine,
			SpeakerNeeded: snap.Config.SpeakerNeeded,
			Broker:        snap.Config.Broker,
			TopicPrefix:   snap.Config.TopicPrefix,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if !snap.LastEventAt.IsZero() {
		inner.LastEventAt = snap.LastEventAt.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
