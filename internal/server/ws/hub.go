// Package ws pushes market events to WebSocket clients. Every data frame is
// a binary protobuf envelope as published on the bus; clients narrow the
// feed to chosen questions with a JSON subscribe message.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Metrics receives client connection changes.
type Metrics interface {
	WSClientConnected()
	WSClientDisconnected()
}

// SeqSource reports the current ledger sequence for the hello frame.
type SeqSource interface {
	Seq() uint64
}

// subscribeMsg narrows or widens a client's feed. An empty question set
// means every event.
type subscribeMsg struct {
	Action    string   `json:"action"` // "subscribe" or "unsubscribe"
	Questions []uint64 `json:"questions"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	subs map[uint64]bool
}

type broadcastMsg struct {
	questionID uint64
	data       []byte
}

// Hub bridges the event bus to connected clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	seq        SeqSource
	metrics    Metrics
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub reading from bus. metrics may be nil. allowedOrigins
// restricts browser upgrades; empty allows every origin.
func NewHub(bus domain.SignalBus, seq SeqSource, metrics Metrics, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		seq:        seq,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Run subscribes to the event channel and serves clients until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	events, err := h.bus.Subscribe(ctx, service.EventsChannel)
	if err != nil {
		return err
	}
	h.logger.Info("ws: subscribed", slog.String("channel", service.EventsChannel))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
				h.disconnected()
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WSClientConnected()
			}
			h.logger.Debug("ws: client connected", slog.Int("total_clients", h.clientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.disconnected()
			}
			h.mu.Unlock()
			h.logger.Debug("ws: client disconnected", slog.Int("total_clients", h.clientCount()))

		case data, ok := <-events:
			if !ok {
				h.logger.Warn("ws: event subscription closed")
				events = nil
				continue
			}
			env, err := service.DecodeEvent(data)
			if err != nil {
				h.logger.Warn("ws: dropping undecodable event", slog.String("error", err.Error()))
				continue
			}
			h.fanOut(broadcastMsg{questionID: env.QuestionID, data: data})
		}
	}
}

func (h *Hub) fanOut(msg broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(msg.questionID) {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

func (h *Hub) disconnected() {
	if h.metrics != nil {
		h.metrics.WSClientDisconnected()
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[uint64]bool),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	if hello, err := json.Marshal(map[string]any{"type": "hello", "seq": h.seq.Seq()}); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			h.leave(c)
			conn.Close()
			return
		}
	}

	go c.writePump()
	go c.readPump()
}

// leave unregisters c unless the hub has already stopped.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// readPump handles subscription messages until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil {
			c.apply(sub)
		}
	}
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, id := range msg.Questions {
			c.subs[id] = true
		}
	case "unsubscribe":
		for _, id := range msg.Questions {
			delete(c.subs, id)
		}
	}
}

// wants reports whether an event of the question should reach the client.
// Events outside any question reach everyone.
func (c *client) wants(questionID uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || questionID == 0 || c.subs[questionID]
}

// writePump sends queued envelopes as binary frames plus keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
