package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"courtyard/internal/observability"
)

const (
	// Max connections per resident
	maxConnsPerResident = 8
	// Max total connections
	maxTotalConns = 10000
)

// Hub is a websocket hub that maps topic -> set of subscribed Clients.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*Client]struct{}
	byResident map[uuid.UUID]map[*Client]struct{}
	totalConns int
	shutdown   chan struct{}
	done       chan struct{}
}

// NewHub creates a new Hub instance for managing notification connections.
func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]struct{}),
		byResident: make(map[uuid.UUID]map[*Client]struct{}),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register a connection for a resident subscribed to the given topics.
// Returns the Client or an error if limits are exceeded.
func (h *Hub) Register(residentID uuid.UUID, topics []string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	owned, ok := h.byResident[residentID]
	if !ok {
		owned = make(map[*Client]struct{})
		h.byResident[residentID] = owned
	}
	if len(owned) >= maxConnsPerResident {
		return nil, errors.New("resident connection limit reached")
	}

	client := NewClient(h, conn, residentID, topics)
	owned[client] = struct{}{}
	for _, topic := range topics {
		subs, ok := h.topics[topic]
		if !ok {
			subs = make(map[*Client]struct{})
			h.topics[topic] = subs
		}
		subs[client] = struct{}{}
		observability.WebSocketTopicConnections.WithLabelValues(topic).Inc()
	}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()

	return client, nil
}

// UnregisterClient removes a client from every topic it subscribed to.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owned, ok := h.byResident[client.ResidentID]
	if !ok {
		return
	}
	if _, exists := owned[client]; !exists {
		return
	}
	delete(owned, client)
	if len(owned) == 0 {
		delete(h.byResident, client.ResidentID)
	}

	for _, topic := range client.Topics {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
			observability.WebSocketTopicConnections.WithLabelValues(topic).Dec()
		}
	}
	h.totalConns--
	observability.WebSocketConnectionsTotal.Dec()
}

// Broadcast sends a message to every client subscribed to the topic.
func (h *Hub) Broadcast(topic, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if subs, ok := h.topics[topic]; ok {
		data := []byte(message)
		for c := range subs {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether a resident has at least one active connection.
func (h *Hub) IsOnline(residentID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	owned, ok := h.byResident[residentID]
	return ok && len(owned) > 0
}

// TopicSubscribers returns the current subscriber count for a topic.
func (h *Hub) TopicSubscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// StartWiring connects the Notifier to this hub: it subscribes to the
// notification channel pattern and forwards payloads to topic subscribers.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if !ValidTopic(channel) {
			log.Printf("invalid notification channel: %s", channel)
			return
		}
		h.Broadcast(channel, payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	h.mu.Lock()
	for residentID, owned := range h.byResident {
		for client := range owned {
			if client.Conn == nil {
				continue
			}
			// Send close message to client
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for resident %s: %v", residentID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for resident %s: %v", residentID, err)
			}
		}
	}
	h.topics = make(map[string]map[*Client]struct{})
	h.byResident = make(map[uuid.UUID]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	close(h.done)

	return nil
}
