package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/jack-sensor/internal/logic"
)

// BufferSize is the number of messages held while the broker is unreachable.
const BufferSize = 256

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are held in a ring buffer and replayed on (re)connect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	logger *slog.Logger

	mu        sync.Mutex
	buf       *ringBuffer
	lineOut   logic.LineOutState
	connected bool // at least one connection has been made
}

// NewRealPublisher creates a publisher for the given broker. It does not
// wait for the connection: paho keeps retrying in the background and
// anything published meanwhile is buffered.
func NewRealPublisher(broker, clientID string, topics Topics, logger *slog.Logger) (*RealPublisher, error) {
	if broker == "" {
		return nil, errors.New("no broker configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &RealPublisher{
		topics: topics,
		logger: logger.With("component", "mqtt"),
		buf:    newRingBuffer(BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWill(topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p, nil
}

// onConnect replays buffered messages. It runs on a paho goroutine.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	p.logger.Info("connected", "replaying", len(pending))
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.logger.Warn("replay failed", "topic", msg.topic, "error", err)
		}
	}

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			err = p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1})
		}
		if err != nil {
			p.logger.Warn("publish reconnect event failed", "error", err)
		}
	}
}

// Publish sends a headset event. State changes are also written to the
// retained state topic.
func (p *RealPublisher) Publish(event logic.Event) error {
	p.mu.Lock()
	p.lineOut = lineOutFor(event, p.lineOut)
	lineOut := p.lineOut
	p.mu.Unlock()

	payload, err := FormatPayload(event, lineOut)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.enqueue(bufferedMsg{topic: p.topics.Events, payload: payload}); err != nil {
		return err
	}
	if IsStateChange(event.Type) {
		return p.enqueue(bufferedMsg{topic: p.topics.State, payload: payload, qos: 1, retained: true})
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.enqueue(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// enqueue sends msg now when connected, otherwise buffers it.
func (p *RealPublisher) enqueue(msg bufferedMsg) error {
	if p.client.IsConnectionOpen() {
		return p.send(msg)
	}

	p.mu.Lock()
	dropped := p.buf.push(msg)
	p.mu.Unlock()
	if dropped {
		p.logger.Warn("offline buffer full, dropping oldest messages", "capacity", BufferSize)
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
