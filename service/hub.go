package service

import (
	"sync"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/metrics"
)

// Hub fans events out to a user's open SSE streams. Delivery is at-most-once:
// a full or absent subscriber simply misses the event, the durable rows in
// Postgres remain the source of truth.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan model.Event
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan model.Event)}
}

// Subscribe opens a stream for the user and returns the channel plus an id
// used to unsubscribe.
func (h *Hub) Subscribe(userID string) (int, <-chan model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan model.Event, 16)

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan model.Event)
	}
	h.subs[userID][id] = ch
	metrics.SSEConnections.Inc()
	return id, ch
}

// Unsubscribe closes the stream identified by id.
func (h *Hub) Unsubscribe(userID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.subs[userID]
	if !ok {
		return
	}
	if ch, ok := conns[id]; ok {
		close(ch)
		delete(conns, id)
		metrics.SSEConnections.Dec()
	}
	if len(conns) == 0 {
		delete(h.subs, userID)
	}
}

// Push delivers an event to every open stream of the user without blocking.
func (h *Hub) Push(userID string, ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than block the sender.
		}
	}
}

// Connected reports whether the user has at least one open stream.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID]) > 0
}
