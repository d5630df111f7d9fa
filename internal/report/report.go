// Package report holds the published accessory classification. While
// registered, readouts and the jack/line-out alive flags update
// synchronously; delivery to publishers
// (MQTT, status tracker, journal, websocket) happens on a separate goroutine.
package report

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// SwitchName is the name the classification is published under.
const SwitchName = "h2w"

// DefaultQueueSize bounds events waiting for delivery.
const DefaultQueueSize = 64

// ErrRegistered is returned by Register when already registered.
var ErrRegistered = errors.New("reporter already registered")

// Publisher receives every reported event.
type Publisher interface {
	Publish(event logic.Event) error
}

// Readout is a point-in-time copy of the published classification.
type Readout struct {
	Name         string
	State        int
	Accessory    logic.AccessoryState
	LineOut      logic.LineOutState
	HeadsetType  logic.HeadsetType
	JackAlive    bool
	LineOutAlive bool
}

// Reporter publishes classification changes.
type Reporter struct {
	logger *slog.Logger

	mu          sync.RWMutex
	accessory   logic.AccessoryState
	lineOut     logic.LineOutState
	headsetType logic.HeadsetType
	registered  bool
	publishers  []Publisher

	jackAlive    atomic.Bool
	lineOutAlive atomic.Bool

	queue   chan logic.Event
	dropped atomic.Uint64
}

// New creates a Reporter delivering to pubs.
func New(logger *slog.Logger, queueSize int, pubs ...Publisher) *Reporter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Reporter{
		logger:     logger,
		publishers: pubs,
		queue:      make(chan logic.Event, queueSize),
	}
}

// AddPublisher adds a delivery target.
func (r *Reporter) AddPublisher(p Publisher) {
	r.mu.Lock()
	r.publishers = append(r.publishers, p)
	r.mu.Unlock()
}

// Register makes the reporter accept events.
func (r *Reporter) Register() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered {
		return ErrRegistered
	}
	r.registered = true
	r.logger.Debug("reporter registered", "switch", SwitchName)
	return nil
}

// Unregister stops accepting events. Readouts keep their last values.
func (r *Reporter) Unregister() {
	r.mu.Lock()
	r.registered = false
	r.mu.Unlock()
	r.logger.Debug("reporter unregistered", "switch", SwitchName)
}

// Registered reports whether events are accepted.
func (r *Reporter) Registered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registered
}

// Report updates the readouts and flags for event and queues it for
// delivery. It never blocks: if the queue is full the event is dropped.
// Events reported while unregistered are dropped and leave the readouts
// untouched.
func (r *Reporter) Report(event logic.Event) {
	r.mu.Lock()
	if !r.registered {
		r.mu.Unlock()
		r.logger.Debug("event dropped, reporter not registered", "event", event.Type)
		return
	}
	switch event.Type {
	case logic.EventHeadsetInserted, logic.EventHeadsetRemoved:
		r.accessory = event.Accessory
		r.jackAlive.Store(event.Accessory == logic.Headset)
	case logic.EventLineOutInserted, logic.EventLineOutRemoved:
		r.lineOut = event.LineOut
		r.lineOutAlive.Store(event.LineOut == logic.LineOutPresent)
	case logic.EventHeadsetType:
		r.headsetType = event.HeadsetType
	}
	r.mu.Unlock()

	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("event queue full, dropping event", "event", event.Type)
	}
}

// Name returns the string readout ("No Device" or "Headset").
func (r *Reporter) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accessory.Name()
}

// State returns the integer readout (0 or 2).
func (r *Reporter) State() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accessory.Value()
}

// JackAlive reports whether a headset was last published as attached.
func (r *Reporter) JackAlive() bool {
	return r.jackAlive.Load()
}

// LineOutAlive reports whether a line-out cable was last published as
// attached.
func (r *Reporter) LineOutAlive() bool {
	return r.lineOutAlive.Load()
}

// Dropped returns how many events were dropped on a full queue.
func (r *Reporter) Dropped() uint64 {
	return r.dropped.Load()
}

// Readout returns the current classification.
func (r *Reporter) Readout() Readout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Readout{
		Name:         r.accessory.Name(),
		State:        r.accessory.Value(),
		Accessory:    r.accessory,
		LineOut:      r.lineOut,
		HeadsetType:  r.headsetType,
		JackAlive:    r.jackAlive.Load(),
		LineOutAlive: r.lineOutAlive.Load(),
	}
}

// Run delivers queued events until ctx is canceled, then delivers whatever
// is still queued.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.Flush()
			return nil
		case event := <-r.queue:
			r.deliver(event)
		}
	}
}

// Flush delivers queued events on the calling goroutine and returns how
// many were delivered.
func (r *Reporter) Flush() int {
	n := 0
	for {
		select {
		case event := <-r.queue:
			r.deliver(event)
			n++
		default:
			return n
		}
	}
}

func (r *Reporter) deliver(event logic.Event) {
	r.mu.RLock()
	pubs := make([]Publisher, len(r.publishers))
	copy(pubs, r.publishers)
	r.mu.RUnlock()

	for _, p := range pubs {
		if err := p.Publish(event); err != nil {
			r.logger.Warn("publish failed", "event", event.Type, "error", err)
		}
	}
}
