package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/jack-sensor/internal/clock"
	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/headset"
	"github.com/sweeney/jack-sensor/internal/input"
	"github.com/sweeney/jack-sensor/internal/journal"
	"github.com/sweeney/jack-sensor/internal/logic"
	"github.com/sweeney/jack-sensor/internal/mqtt"
	"github.com/sweeney/jack-sensor/internal/report"
	"github.com/sweeney/jack-sensor/internal/status"
	"github.com/sweeney/jack-sensor/internal/web"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// pipeline wires the detection module to every event consumer, the way the
// daemon does, with fakes at the hardware edges.
type pipeline struct {
	src     *gpio.FakeSource
	sink    *codec.FakeSink
	keys    *input.FakeKeySink
	clk     *clock.Fake
	module  *headset.Module
	rep     *report.Reporter
	tracker *status.Tracker
	store   *journal.Store
	pub     *mqtt.FakePublisher
	http    *httptest.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newPipeline(t *testing.T, platform logic.Platform) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := &pipeline{
		src:     gpio.NewFakeSource(),
		sink:    codec.NewFakeSink(),
		keys:    input.NewFakeKeySink(),
		clk:     clock.NewFake(epoch),
		tracker: status.NewTracker(epoch, status.Config{Platform: int(platform)}),
		pub:     mqtt.NewFakePublisher(),
	}
	p.src.SetLevel(gpio.LineHook, 0)

	store, err := journal.Open(journal.Options{Logger: logger})
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	p.store = store
	t.Cleanup(func() { store.Close() })

	p.rep = report.New(logger, 64, p.tracker, p.store, p.pub)
	p.module = headset.New(headset.Config{Platform: platform, SpeakerNeeded: true}, headset.Deps{
		GPIO:     p.src,
		Codec:    p.sink,
		Reporter: p.rep,
		Clock:    p.clk,
		Logger:   logger,
		OpenKeys: func() (input.KeySink, error) { return p.keys, nil },
	})

	srv := web.New(":0", p.tracker, web.Options{History: p.store, Checker: p.module, Logger: logger})
	p.http = httptest.NewServer(srv.Handler())
	t.Cleanup(p.http.Close)

	if err := p.module.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.module.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.rep.Run(ctx)
	}()
	t.Cleanup(p.stop)
	return p
}

// stop shuts the module down and drains the reporter. Safe to call twice.
func (p *pipeline) stop() {
	p.module.Shutdown()
	p.cancel()
	p.wg.Wait()
}

// waitFor polls cond until it holds. Deferred work runs on module goroutines.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *pipeline) waitEvents(t *testing.T, want ...logic.EventType) {
	t.Helper()
	waitFor(t, "events "+eventList(want), func() bool {
		return slices.Equal(p.pub.EventTypes(), want)
	})
}

func eventList(ts []logic.EventType) string {
	b, _ := json.Marshal(ts)
	return string(b)
}

func TestIntegrationHeadsetSession(t *testing.T) {
	p := newPipeline(t, logic.PlatformButton)
	p.waitEvents(t, logic.EventHeadsetRemoved)

	// Plug in: debounce, settle, classify.
	p.src.Drive(gpio.LineJack, 0)
	p.clk.Advance(headset.DebounceDetached)
	p.waitEvents(t, logic.EventHeadsetRemoved, logic.EventHeadsetInserted)

	if !p.module.HookSuppressed() {
		t.Error("hook should be suppressed right after detection")
	}
	p.clk.Advance(headset.HookSuppressWindow)
	if p.module.HookSuppressed() {
		t.Fatal("suppress window should have expired")
	}

	// Press and release the button.
	p.src.Drive(gpio.LineHook, 1)
	p.waitEvents(t, logic.EventHeadsetRemoved, logic.EventHeadsetInserted, logic.EventHookDown)
	p.src.Drive(gpio.LineHook, 0)
	p.waitEvents(t, logic.EventHeadsetRemoved, logic.EventHeadsetInserted, logic.EventHookDown, logic.EventHookUp)

	keys := p.keys.Events()
	if len(keys) != 2 || !keys[0].Down || keys[1].Down || keys[0].Code != input.KeyHeadsetHook {
		t.Errorf("key events: got %+v", keys)
	}

	// Unplug.
	p.src.Drive(gpio.LineJack, 1)
	p.clk.Advance(headset.DebounceAttached)
	p.waitEvents(t, logic.EventHeadsetRemoved, logic.EventHeadsetInserted, logic.EventHookDown, logic.EventHookUp, logic.EventHeadsetRemoved)

	if v, _ := p.sink.Last(codec.RegHPOutput); v != codec.Off {
		t.Errorf("headphone output after removal: got %#x", v)
	}

	p.stop()

	snap := p.tracker.Snapshot()
	if snap.Accessory != logic.NoDevice {
		t.Errorf("tracker accessory: got %s", snap.Accessory)
	}
	if snap.Counts.Insertions != 1 || snap.Counts.Removals != 2 || snap.Counts.HookPresses != 1 || snap.Counts.HookReleases != 1 {
		t.Errorf("tracker counts: got %+v", snap.Counts)
	}

	entries, err := p.store.Recent(10)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(entries) != 5 || entries[0].Event != "HEADSET_OUT" || entries[4].Event != "HEADSET_OUT" || entries[3].Event != "HEADSET_IN" {
		t.Errorf("journal: got %+v", entries)
	}

	// The hook payload carries the accessory readout.
	var payload mqtt.Payload
	if err := json.Unmarshal(p.pub.Payloads[2], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Headset.Event != "HOOK_DOWN" || payload.Headset.Name != "Headset" || !payload.Headset.JackAlive {
		t.Errorf("hook payload: got %+v", payload.Headset)
	}
}

func TestIntegrationBounceNotPublished(t *testing.T) {
	p := newPipeline(t, logic.PlatformButton)
	p.waitEvents(t, logic.EventHeadsetRemoved)

	// In and back out before the debounce expires: the cycle finds the jack
	// empty and publishes nothing.
	p.src.Drive(gpio.LineJack, 0)
	p.src.Drive(gpio.LineJack, 1)
	p.clk.Advance(headset.DebounceDetached)

	waitFor(t, "detection cycle", func() bool {
		return p.clk.SleepTotal() >= headset.SettleDelay
	})
	p.stop()

	if got := p.pub.EventTypes(); !slices.Equal(got, []logic.EventType{logic.EventHeadsetRemoved}) {
		t.Errorf("events: got %v", got)
	}
}

func TestIntegrationLineOut(t *testing.T) {
	p := newPipeline(t, logic.PlatformLineOut)
	// Initial sample: line-out absent, jack absent.
	p.waitEvents(t, logic.EventLineOutRemoved, logic.EventHeadsetRemoved)

	p.src.Drive(gpio.LineLineOut, 0)
	p.waitEvents(t, logic.EventLineOutRemoved, logic.EventHeadsetRemoved, logic.EventLineOutInserted)
	waitFor(t, "speaker mute", func() bool {
		v, ok := p.sink.Last(codec.RegGPIO3)
		return ok && v == codec.Off
	})

	p.src.Drive(gpio.LineLineOut, 1)
	p.waitEvents(t, logic.EventLineOutRemoved, logic.EventHeadsetRemoved, logic.EventLineOutInserted, logic.EventLineOutRemoved)
	waitFor(t, "speaker enable", func() bool {
		v, ok := p.sink.Last(codec.RegGPIO3)
		return ok && v == codec.GPIO3SpeakerOn
	})

	if p.rep.LineOutAlive() {
		t.Error("reporter should show line-out removed")
	}
	if got := p.tracker.Snapshot().LineOut; got != logic.LineOutAbsent {
		t.Errorf("tracker lineout: got %s, want ABSENT", got)
	}
}

func TestIntegrationHTTP(t *testing.T) {
	p := newPipeline(t, logic.PlatformButton)
	p.waitEvents(t, logic.EventHeadsetRemoved)

	p.src.Drive(gpio.LineJack, 0)
	p.clk.Advance(headset.DebounceDetached)
	p.waitEvents(t, logic.EventHeadsetRemoved, logic.EventHeadsetInserted)

	// Hook reads released: a microphone is present.
	resp, err := http.Get(p.http.URL + "/headset-type.json")
	if err != nil {
		t.Fatalf("GET /headset-type.json: %v", err)
	}
	var ht web.HeadsetTypeJSON
	json.NewDecoder(resp.Body).Decode(&ht)
	resp.Body.Close()
	if ht.HeadsetType != "WITH_MIC" || !ht.HasMic {
		t.Errorf("headset type: got %+v", ht)
	}

	p.waitEvents(t, logic.EventHeadsetRemoved, logic.EventHeadsetInserted, logic.EventHeadsetType)

	resp, err = http.Get(p.http.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)
	resp.Body.Close()
	if sj.Status.Name != "Headset" || sj.Status.HeadsetType != "WITH_MIC" {
		t.Errorf("status: got %+v", sj.Status)
	}

	resp, err = http.Get(p.http.URL + "/history.json?limit=2")
	if err != nil {
		t.Fatalf("GET /history.json: %v", err)
	}
	var hj web.HistoryJSON
	json.NewDecoder(resp.Body).Decode(&hj)
	resp.Body.Close()
	if hj.Count != 2 || hj.Entries[0].Event != "HEADSET_TYPE" || hj.Entries[1].Event != "HEADSET_IN" {
		t.Errorf("history: got %+v", hj)
	}
}
