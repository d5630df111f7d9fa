package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/jack-sensor/internal/logic"
	"github.com/sweeney/jack-sensor/internal/status"
)

// Live clients receive JSON text frames with an envelope: {type, ts, data}.
// The first frame after connecting is "status_init" carrying the status
// document; every reported event follows as an "event" frame.

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// HubConfig sizes the hub queues. Zero values use defaults.
type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
	BroadcastBuf int
}

// Hub tracks connected WebSocket clients and fans events out to them.
// It is a report.Publisher.
type Hub struct {
	logger    *slog.Logger
	broadcast chan []byte
	sendBuf   int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}
	return &Hub{
		logger:    logger.With("component", "ws"),
		broadcast: make(chan []byte, bcastBuf),
		sendBuf:   sendBuf,
		clients:   make(map[*client]struct{}),
	}
}

// Run delivers broadcasts until ctx is canceled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case msg := <-h.broadcast:
			var slow []*client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.remove(c, "slow_client")
			}
		}
	}
}

// Publish broadcasts event to all clients. It never blocks; if the hub
// queue is full the message is dropped.
func (h *Hub) Publish(event logic.Event) error {
	ts := event.Timestamp.UTC()
	msg, err := json.Marshal(envelope{Type: "event", Ts: &ts, Data: eventJSON(event)})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message", "event", event.Type)
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serve upgrades the request, registers the client and queues status_init.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, snap status.Snapshot) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	now := snap.Now.UTC()
	initMsg, err := json.Marshal(envelope{
		Type: "status_init",
		Ts:   &now,
		Data: json.RawMessage(status.FormatJSON(snap)),
	})
	if err != nil {
		h.logger.Warn("encode status_init", "error", err)
		conn.Close()
		return
	}

	c := &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuf),
		remoteAddr: r.RemoteAddr,
	}
	// Queued before registering so it is always the first frame.
	c.send <- initMsg

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", "remote_addr", c.remoteAddr, "clients", n)

	// Pumps outlive the request; the hub or a read error ends them.
	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// closeStatus extracts a websocket close code and text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump writes queued messages and pings. It exits on write error or
// when send is closed, closing the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards incoming messages to process control frames and
// detect disconnects.
func (c *client) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			c.hub.remove(c, "read_error")
			return
		}
	}
}

func (c *client) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.hub.logger.Debug("pump exiting (close)", "op", op, "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.hub.logger.Debug("pump exiting", "op", op, "remote_addr", c.remoteAddr, "error", err)
}
