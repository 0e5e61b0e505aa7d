package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connections and their topic subscriptions. Delivery is a
// non-blocking send; a connection whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	all    map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		all:    make(map[*Client]struct{}),
	}
}

// Register adds a client and subscribes it to its initial topics
func (h *Hub) Register(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[c] = struct{}{}
	h.subscribeLocked(c, topics)
}

// Unregister removes a client from every topic and closes its send buffer.
// Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[c]; !ok {
		return
	}
	for topic := range c.topics {
		h.removeLocked(topic, c)
	}
	c.topics = nil
	delete(h.all, c)
	close(c.send)
}

// Subscribe adds topics to a registered client
func (h *Hub) Subscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[c]; !ok {
		return
	}
	h.subscribeLocked(c, topics)
}

// Unsubscribe removes topics from a registered client
func (h *Hub) Unsubscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if _, ok := c.topics[topic]; !ok {
			continue
		}
		delete(c.topics, topic)
		h.removeLocked(topic, c)
	}
}

func (h *Hub) subscribeLocked(c *Client, topics []string) {
	if c.topics == nil {
		c.topics = make(map[string]struct{})
	}
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*Client]struct{})
		}
		h.topics[topic][c] = struct{}{}
		c.topics[topic] = struct{}{}
	}
}

func (h *Hub) removeLocked(topic string, c *Client) {
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish sends ev once to each client subscribed to any of topics
func (h *Hub) Publish(ev Event, topics ...string) {
	data, err := json.Marshal(ev)
	if err != nil {
		zap.S().Errorw("failed to marshal event", "event", ev.Name, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, topic := range topics {
		for c := range h.topics[topic] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			h.deliver(c, ev.Name, data)
		}
	}
}

// PublishAll sends ev to every connected client
func (h *Hub) PublishAll(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		zap.S().Errorw("failed to marshal event", "event", ev.Name, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.all {
		h.deliver(c, ev.Name, data)
	}
}

func (h *Hub) deliver(c *Client, name string, data []byte) {
	select {
	case c.send <- data:
	default:
		zap.S().Warnw("dropped event for slow connection",
			"event", name,
			"connection", c.ID,
			"user", c.Identity.ID)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to topic
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
