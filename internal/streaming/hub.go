package streaming

import (
	"log"
	"sync"
	"time"
)

// criticalSendTimeout bounds how long a Complete or Error event waits for
// a slow client before being dropped.
const criticalSendTimeout = 100 * time.Millisecond

// Client represents a connected SSE client
type Client struct {
	Events chan SSEEvent
}

// NewClient creates a new SSE client
func NewClient() *Client {
	return &Client{
		Events: make(chan SSEEvent, 16),
	}
}

// sessionBroadcaster fans events out to the clients watching one import
// session.
type sessionBroadcaster struct {
	mu      sync.Mutex
	clients map[*Client]bool
	stopped bool
}

func newSessionBroadcaster() *sessionBroadcaster {
	return &sessionBroadcaster{
		clients: make(map[*Client]bool),
	}
}

func (b *sessionBroadcaster) register(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		close(client.Events)
		return
	}
	b.clients[client] = true
}

func (b *sessionBroadcaster) unregister(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.Events)
	}
}

func (b *sessionBroadcaster) clientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// broadcast delivers an event to every client. Complete and Error events
// wait briefly for slow clients; other events are dropped when a client's
// channel is full.
func (b *sessionBroadcaster) broadcast(event SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	critical := event.Type == EventTypeComplete || event.Type == EventTypeError

	for client := range b.clients {
		if critical {
			select {
			case client.Events <- event:
			case <-time.After(criticalSendTimeout):
				log.Printf("ERROR: dropping %s event for slow client", event.Type)
			}
			continue
		}

		select {
		case client.Events <- event:
		default:
			log.Printf("WARN: client channel full, skipping event type %s", event.Type)
		}
	}
}

func (b *sessionBroadcaster) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	for client := range b.clients {
		close(client.Events)
		delete(b.clients, client)
	}
}

// StreamHub manages broadcasters for multiple import sessions
type StreamHub struct {
	mu           sync.Mutex
	broadcasters map[string]*sessionBroadcaster
}

// NewStreamHub creates a new stream hub
func NewStreamHub() *StreamHub {
	return &StreamHub{
		broadcasters: make(map[string]*sessionBroadcaster),
	}
}

// Register subscribes a new client to a session and returns it
func (h *StreamHub) Register(sessionID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	broadcaster, exists := h.broadcasters[sessionID]
	if !exists {
		broadcaster = newSessionBroadcaster()
		h.broadcasters[sessionID] = broadcaster
	}

	client := NewClient()
	broadcaster.register(client)
	return client
}

// Unregister removes a client from a session. The last client leaving
// tears the broadcaster down.
func (h *StreamHub) Unregister(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	broadcaster, exists := h.broadcasters[sessionID]
	if !exists {
		return
	}

	broadcaster.unregister(client)

	if broadcaster.clientCount() == 0 {
		broadcaster.stop()
		delete(h.broadcasters, sessionID)
	}
}

// Broadcast sends an event to all clients of a session. Events for
// sessions nobody watches are discarded.
func (h *StreamHub) Broadcast(sessionID string, event SSEEvent) {
	h.mu.Lock()
	broadcaster, exists := h.broadcasters[sessionID]
	h.mu.Unlock()

	if !exists {
		return
	}

	broadcaster.broadcast(event)
}

// Close stops and removes the broadcaster for a session, closing every
// remaining client channel. Used when a session ends server-side.
func (h *StreamHub) Close(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if broadcaster, exists := h.broadcasters[sessionID]; exists {
		broadcaster.stop()
		delete(h.broadcasters, sessionID)
	}
}

// IsRunning checks if a session broadcaster exists
func (h *StreamHub) IsRunning(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, exists := h.broadcasters[sessionID]
	return exists
}
