// Package realtime pushes live portal events to connected clients over
// WebSockets. It implements a hub-and-spoke pattern where clients subscribe
// to topics and receive events broadcast to those topics.
package realtime

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic name helpers. A user topic carries account-directed events such as
// new notifications and family updates; a conversation topic carries chat
// events for its participants.
func UserTopic(accountID uuid.UUID) string {
	return "user:" + accountID.String()
}

func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// Event types pushed through the hub.
const (
	EventMessageNew      = "message.new"
	EventMessageDeleted  = "message.deleted"
	EventNotificationNew = "notification.new"
	EventFamilyRequest   = "family.request"
	EventFamilyAccepted  = "family.accepted"
	EventLocationShared  = "location.shared"
	EventPresenceChanged = "presence.changed"
)

// Event represents a real-time event sent to WebSocket clients.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an Event with the payload JSON-encoded. Payloads are
// domain models that always marshal; if one does not, the event goes out
// without data rather than failing the write that triggered it.
func NewEvent(eventType, topic string, payload interface{}) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("realtime: failed to marshal %s payload: %v", eventType, err)
		data = nil
	}
	return Event{
		Type:      eventType,
		Topic:     topic,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ClientMessage represents an inbound message from a WebSocket client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// EventPublisher defines the interface services use to push events. Delivery
// is fire-and-forget; a write must never fail because no one is listening.
type EventPublisher interface {
	Publish(event Event)
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket connection bound to an authenticated
// account.
type Client struct {
	ID     string
	UserID uuid.UUID
	Topics []string
	Send   chan []byte
	hub    *Hub
	conn   Conn
}

// Hub is the central connection manager that tracks clients and their topic
// subscriptions. All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}            // all connected clients
}

// NewHub creates a new Hub ready to manage WebSocket clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister removes a client from the hub, all topic subscriptions, and
// closes the client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Subscribe dynamically adds topics to an already-registered client. A client
// may only subscribe to its own user topic, and to conversation topics it
// participates in; anything else is ignored. Conversation IDs are the sorted
// pair of participant IDs, so participation is checked without a lookup.
func (h *Hub) Subscribe(client *Client, topics []string) {
	allowed := make([]string, 0, len(topics))
	own := UserTopic(client.UserID)
	uid := client.UserID.String()
	for _, topic := range topics {
		if strings.HasPrefix(topic, "user:") && topic != own {
			continue
		}
		if convID, ok := strings.CutPrefix(topic, "conversation:"); ok {
			a, b, _ := strings.Cut(convID, "_")
			if a != uid && b != uid {
				continue
			}
		}
		allowed = append(allowed, topic)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range allowed {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	client.Topics = append(client.Topics, allowed...)
}

// Unsubscribe dynamically removes topics from an already-registered client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
	}

	for _, topic := range topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage handles an inbound ClientMessage, dispatching to Subscribe
// or Unsubscribe as appropriate.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends an event to all clients subscribed to the given topic.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers, ok := h.clients[topic]
	if !ok {
		return
	}

	for client := range subscribers {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// Publish implements the EventPublisher interface by broadcasting the event
// to subscribers of the event's topic.
func (h *Hub) Publish(event Event) {
	h.Broadcast(event.Topic, event)
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
