package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/splitbook/internal/metrics"
)

// Message tells a client that a ledger entity it can see has changed. The
// client refetches the entity; no ledger data travels over the socket.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
	}
}

// Hub tracks connected clients per account and delivers messages only to
// the accounts affected by a change.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	count   int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		metrics: m,
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.accountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.accountID] = set
	}
	set[c] = struct{}{}
	h.count++
	n := h.count
	h.mu.Unlock()
	h.metrics.SetWebsocketClients(n)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.clients[c.accountID]
	if _, ok := set[c]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.accountID)
		}
		close(c.send)
		h.count--
	}
	n := h.count
	h.mu.Unlock()
	h.metrics.SetWebsocketClients(n)
}

// BroadcastTo sends msg to every connection of the given accounts.
func (h *Hub) BroadcastTo(accountIDs []string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range accountIDs {
		for c := range h.clients[id] {
			select {
			case c.send <- data:
			default:
				h.logger.Warn("client buffer full, dropping message", "account_id", id, "type", msg.Type)
			}
		}
	}
}

// Notify delivers a change notification after a ledger commit.
func (h *Hub) Notify(accountIDs []string, entity, action, id string) {
	h.BroadcastTo(accountIDs, NewMessage(entity, action, id))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
