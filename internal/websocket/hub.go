package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	ws "github.com/coder/websocket"
)

// Entities and actions on the change feed.
const (
	EntityAppointment = "appointment"
	EntityCalendar    = "calendar"
	EntityState       = "state"
	EntityReminder    = "reminder"
	EntitySnapshot    = "snapshot"

	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionReplaced = "replaced"
	ActionDue      = "due"
)

// Message is one change-feed notification broadcast to all clients. Data
// carries the changed record when the client can use it directly.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Data   any            `json:"data,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, data any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	origins []string
	logger  *slog.Logger
}

// NewHub creates a new Hub. origins lists extra host patterns allowed to
// open cross-origin connections; same-origin is always allowed.
func NewHub(logger *slog.Logger, origins ...string) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		origins: origins,
		logger:  logger,
	}
}

// Register adds a client to the hub. After Close, new clients are stopped
// straight away.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.stop(ws.StatusGoingAway, "server shutting down")
		return
	}
	h.clients[c] = struct{}{}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			c.markLagged()
		}
	}
}

// Close disconnects every subscriber with a going-away status.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.stop(ws.StatusGoingAway, "server shutting down")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
