package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onehud/registrar/internal/infrastructure/config"
	"github.com/onehud/registrar/internal/infrastructure/logging"
	"github.com/onehud/registrar/internal/registration"
)

// WebSocket message types.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// ChannelStatus is the event type of every pushed registration.Snapshot.
	ChannelStatus = "registration.status"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 16
)

// WSMessage is the envelope for everything sent over the socket.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// upgrader uses gorilla's default same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub pushes registration status to every open page.
//
// Thread Safety: all sends to a client's queue happen under mu, and only
// remove and Run close it, so a queue is never written after it is closed.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client and
// refuses new ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish queues snap for every client. A client whose queue is full misses
// the update; the next one carries the full state anyway.
func (h *Hub) Publish(snap registration.Snapshot) {
	data, err := encodeEvent(snap)
	if err != nil {
		h.logger.Error("encoding status event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected", "clients", len(h.clients))
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("websocket client disconnected", "clients", len(h.clients))
}

// deliver queues data for one client if it is still connected.
func (h *Hub) deliver(c *wsClient, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueueLocked(c, data)
	}
}

func (h *Hub) enqueueLocked(c *wsClient, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Debug("websocket client too slow, dropping message")
	}
}

// readLoop handles pings from the page and detects disconnects.
func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	wait := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck // read error surfaces below
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck // read error surfaces above

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.deliver(c, encodeReply("", WSTypeError, map[string]string{"message": "invalid JSON message"}))
			continue
		}
		if msg.Type != WSTypePing {
			h.deliver(c, encodeReply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type}))
			continue
		}
		h.deliver(c, encodeReply(msg.ID, WSTypePong, nil))
	}
}

// writeLoop drains the client's queue and keeps the connection alive.
func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(h.cfg.PongTimeout) * time.Second
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error surfaces below
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error surfaces below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and immediately sends the current
// session so a freshly opened page renders the right state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBufferSize)}
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	if data, err := encodeEvent(s.registrar.Snapshot()); err == nil {
		s.hub.deliver(c, data)
	}

	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

func encodeEvent(snap registration.Snapshot) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: ChannelStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   snap,
	})
}

// encodeReply builds a response to a client message. Replies only carry
// strings and nil, so marshalling cannot fail.
func encodeReply(id, msgType string, payload any) []byte {
	data, _ := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	return data
}
