// Package notify fans domain events out to in-process subscribers.
// Register UIs subscribe to session and sale lifecycle events; the hub
// never blocks publishers, slow subscribers drop events instead.
package notify

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the event family an envelope carries.
type Kind string

const (
	KindSessionGranted  Kind = "session.granted"
	KindSessionDenied   Kind = "session.denied"
	KindSessionEnded    Kind = "session.ended"
	KindEditRequested   Kind = "edit.requested"
	KindEditResolved    Kind = "edit.resolved"
	KindSaleCompleted   Kind = "sale.completed"
	KindSaleCancelled   Kind = "sale.cancelled"
	KindStockReconciled Kind = "stock.reconciled"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	ID         uuid.UUID       `json:"eventId"`
	Kind       Kind            `json:"kind"`
	VendorID   uuid.UUID       `json:"vendorId,omitempty"`
	CartID     string          `json:"cartId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Filter decides whether a subscription wants a given event. A nil
// filter receives everything.
type Filter func(Event) bool

// KindFilter matches any of the given kinds.
func KindFilter(kinds ...Kind) Filter {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(ev Event) bool {
		_, ok := set[ev.Kind]
		return ok
	}
}

// VendorFilter matches events for a single vendor.
func VendorFilter(vendorID uuid.UUID) Filter {
	return func(ev Event) bool {
		return ev.VendorID == vendorID
	}
}

// Subscription is a live feed of events. Close it when done; the hub
// drops it automatically otherwise only on hub Close.
type Subscription struct {
	hub    *Hub
	id     uint64
	filter Filter
	ch     chan Event

	once sync.Once
}

// Events returns the receive channel. It is closed when the
// subscription or the hub closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.ch)
	})
}

// Hub is an in-process event bus. Publish is non-blocking; a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool

	buffer  int
	dropped atomic.Uint64
}

const defaultBuffer = 16

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a new subscription. A nil filter receives all events.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:    h,
		id:     h.nextID,
		filter: filter,
		ch:     make(chan Event, h.buffer),
	}
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Publish stamps and delivers the event to every matching subscriber.
// Events without an ID or timestamp are filled in.
func (h *Hub) Publish(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were discarded because a subscriber
// buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close shuts the hub down and closes all subscription channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Marshal encodes v as the event's Data payload.
func Marshal(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
