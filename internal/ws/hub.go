package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/chainduel/backend/internal/events"
)

// Client is one push subscription: a websocket plus the topics it watches
// and its forward-only reducer.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	topics  []string
	mu      sync.Mutex
	tracker Tracker

	// Set for queue subscriptions so disconnect can best-effort leave.
	queueID  string
	playerID int64
	onClose  func(*Client)

	// Guarded by hub.mu.
	closed bool
}

// Hub fans queue and session events out to subscribed clients. Subscriptions
// are keyed by queue-entry id and by session id.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Client]bool)}
}

func queueTopic(id string) string   { return "queue:" + id }
func sessionTopic(id string) string { return "session:" + id }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range c.topics {
		room, ok := h.topics[topic]
		if !ok {
			room = make(map[*Client]bool)
			h.topics[topic] = room
		}
		room[c] = true
	}
}

// unregister removes the client from its topics and closes its send channel.
// Closing under the write lock while deliveries hold the read lock means no
// send can race the close.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range c.topics {
		if room, ok := h.topics[topic]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// DispatchQueueEvent delivers a queue row change to its subscribers.
func (h *Hub) DispatchQueueEvent(ev events.QueueEvent) {
	if ev.Entry == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[queueTopic(ev.Entry.ID)] {
		c.deliverQueue(ev)
	}
}

// DispatchSessionEvent delivers a session row change to its subscribers.
func (h *Hub) DispatchSessionEvent(ev events.SessionEvent) {
	if ev.Session == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[sessionTopic(ev.Session.ID)] {
		c.deliverSession(ev)
	}
}

func (c *Client) deliverQueue(ev events.QueueEvent) {
	c.mu.Lock()
	ok := c.tracker.ApplyQueue(ev.Entry.Status)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.enqueueMessage(ev)
}

func (c *Client) deliverSession(ev events.SessionEvent) {
	c.mu.Lock()
	ok := c.tracker.ApplySession(ev.Session.Status)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.enqueueMessage(ev)
}

func (c *Client) enqueueMessage(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		// Client's buffer is full; the poll channel covers the gap.
		log.Printf("[WS] Send buffer full, dropping message")
	}
}
