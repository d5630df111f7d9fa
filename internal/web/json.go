package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/jack-sensor/internal/journal"
	"github.com/sweeney/jack-sensor/internal/logic"
)

// HistoryJSON is the JSON representation of the event journal.
type HistoryJSON struct {
	Count   int             `json:"count"`
	Entries []journal.Entry `json:"entries"`
}

// HeadsetTypeJSON is the response of a headset type query.
type HeadsetTypeJSON struct {
	HeadsetType string `json:"headset_type"`
	HasMic      bool   `json:"has_mic"`
	Timestamp   string `json:"timestamp"`
}

// EventJSON is the data of a live "event" message.
type EventJSON struct {
	Event       string `json:"event"`
	Name        string `json:"name"`
	State       int    `json:"state"`
	LineOut     string `json:"lineout,omitempty"`
	HeadsetType string `json:"headset_type,omitempty"`
	Timestamp   string `json:"timestamp"`
}

func formatHistory(entries []journal.Entry) []byte {
	if entries == nil {
		entries = []journal.Entry{}
	}
	data, _ := json.MarshalIndent(HistoryJSON{Count: len(entries), Entries: entries}, "", "  ")
	return data
}

func formatHeadsetType(t logic.HeadsetType, now time.Time) []byte {
	data, _ := json.MarshalIndent(HeadsetTypeJSON{
		HeadsetType: string(t),
		HasMic:      t.HasMic(),
		Timestamp:   now.UTC().Format(time.RFC3339),
	}, "", "  ")
	return data
}

func eventJSON(event logic.Event) EventJSON {
	return EventJSON{
		Event:       string(event.Type),
		Name:        event.Accessory.Name(),
		State:       event.Accessory.Value(),
		LineOut:     string(event.LineOut),
		HeadsetType: string(event.HeadsetType),
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
	}
}
