// Package realtime delivers events to connected clients keyed by user id.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrSlowConsumer is returned by Emit when a connection's buffer is full
// and the event was dropped for it.
var ErrSlowConsumer = errors.New("realtime: connection buffer full")

// Event is the frame written to a connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Subscription is one live connection registered under a user.
type Subscription struct {
	id     uint64
	userID uuid.UUID
	ch     chan Event
	once   sync.Once
}

// UserID is the user the subscription was registered under.
func (s *Subscription) UserID() uuid.UUID {
	return s.userID
}

// Events yields the events emitted to this connection. It is closed on Unregister.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub tracks the connections of every user. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	conns  map[uuid.UUID]map[uint64]*Subscription
	closed bool
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uuid.UUID]map[uint64]*Subscription)}
}

// Register adds a connection for userID with room for buffer pending events.
func (h *Hub) Register(userID uuid.UUID, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{id: h.nextID, userID: userID, ch: make(chan Event, buffer)}
	if h.closed {
		sub.close()
		return sub
	}
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[uint64]*Subscription)
	}
	h.conns[userID][sub.id] = sub
	return sub
}

// Unregister removes a connection and closes its event channel. Repeated calls are no-ops.
func (h *Hub) Unregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conns[sub.userID]; ok {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(h.conns, sub.userID)
		}
	}
	sub.close()
}

// Connections counts the live connections of userID.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Emit queues an event on every connection of userID without blocking.
// A user with no connections is not an error.
func (h *Hub) Emit(ctx context.Context, userID uuid.UUID, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, sub := range h.conns[userID] {
		select {
		case sub.ch <- Event{Type: event, Data: payload}:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d of %d connections", ErrSlowConsumer, dropped, len(h.conns[userID]))
	}
	return nil
}

// Close unregisters every connection. Later registrations are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.conns {
		for _, sub := range set {
			sub.close()
		}
		delete(h.conns, userID)
	}
	h.closed = true
}
