package event

import (
	"sync"
	"time"
)

// Bus fans invalidations out to subscribers. Delivery is synchronous:
// Publish returns after every handler has run, so a caller can publish
// and immediately re-execute a graph knowing the dirty marks landed.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]Handler
	nextID int
	closed bool
}

// NewBus creates a new invalidation bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscription identifies an active subscription for later removal.
type Subscription struct {
	bus *Bus
	id  int
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.bus = nil
}

// Subscribe registers a handler for all published invalidations.
// Returns nil if the bus is closed.
func (b *Bus) Subscribe(h Handler) *Subscription {
	if h == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = h
	return &Subscription{bus: b, id: id}
}

// Publish delivers the invalidation to every subscriber in turn.
// A zero Timestamp is filled in. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(inv Invalidation) {
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(inv)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscriptions. Further Subscribe and Publish calls
// are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.subs = nil
	return nil
}
