package events

import (
	"log/slog"
	"sync"

	"github.com/propdesk/propdesk/internal/models"
)

// DefaultBuffer is the per-subscriber queue length
const DefaultBuffer = 32

// Hub fans review events out to moderation subscribers
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	buffer      int
}

// Subscription receives events until it is closed or dropped
type Subscription struct {
	hub    *Hub
	events chan models.ReviewEvent
	once   sync.Once
}

// NewHub creates a hub; buffer <= 0 uses DefaultBuffer
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		buffer:      buffer,
	}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub:    h,
		events: make(chan models.ReviewEvent, h.buffer),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers the event to every subscriber without blocking.
// A subscriber whose queue is full is dropped and its channel closed.
func (h *Hub) Publish(event models.ReviewEvent) {
	var slow []*Subscription

	h.mu.RLock()
	for sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		slog.Warn("dropping slow event subscriber", "event", event.Type, "review_id", event.ReviewID)
		sub.Close()
	}
}

// Count returns the number of active subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close drops every subscriber
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Events returns the receive channel; it is closed when the subscription ends
func (s *Subscription) Events() <-chan models.ReviewEvent {
	return s.events
}

// Close unregisters the subscription; safe to call more than once
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subscribers, s)
		close(s.events)
		s.hub.mu.Unlock()
	})
}
