package hub

import (
	"encoding/json"
	"sync"
	"time"

	"payaid/internal/outbox"

	"go.uber.org/zap"
)

// Client is one connected session. Topics are event-type prefixes; an empty
// list receives every event of the tenant.
type Client struct {
	ID       string
	TenantID string
	Send     chan []byte

	topics []string
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
	dropped int64
}

// Message is the frame pushed to clients for each outbox event.
type Message struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type ControlMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes the client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.topics = cleanTopics(topics)
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.topics = nil
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Broadcast queues event for every client of the event's tenant whose topics
// match. Slow clients lose the message rather than blocking the hub.
func (h *Hub) Broadcast(event outbox.Event) int {
	frame, err := json.Marshal(Message{
		EventID:   event.EventID,
		Type:      event.Type,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		h.logger.Warn("encode event", zap.String("event_id", event.EventID), zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, client := range h.clients {
		if client.TenantID != event.TenantID || !outbox.MatchesTopic(client.topics, event.Type) {
			continue
		}
		select {
		case client.Send <- frame:
			delivered++
		default:
			h.dropped++
			h.logger.Debug("drop message", zap.String("client_id", client.ID), zap.String("event_id", event.EventID))
		}
	}
	return delivered
}

// ParseControl decodes a subscribe or unsubscribe frame.
func ParseControl(data []byte) (ControlMessage, bool) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return ControlMessage{}, false
	}
	return msg, true
}

func cleanTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	return out
}
