// Package realtime fans out collection changes to live subscribers
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of change
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Change is one modification of a document in a collection
type Change struct {
	Outlet     string      `json:"outlet_id"`
	Collection string      `json:"collection"`
	Op         Op          `json:"op"`
	ID         string      `json:"id"`
	Data       interface{} `json:"data,omitempty"`
	At         time.Time   `json:"at"`
}

// Subscription receives the changes of one outlet
type Subscription struct {
	ID     string
	Outlet string
	C      <-chan Change

	ch          chan Change
	mu          sync.RWMutex
	collections map[string]bool
}

// Watch limits the subscription to the given collections. No collections means all.
func (s *Subscription) Watch(collections ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]bool, len(collections))
	for _, c := range collections {
		s.collections[c] = true
	}
}

func (s *Subscription) wants(collection string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections) == 0 || s.collections[collection]
}

// Hub delivers changes to subscribers of the same outlet
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	buffer  int
	dropped atomic.Int64
}

// NewHub creates a hub whose subscribers buffer up to buffer changes
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{subs: make(map[string]*Subscription), buffer: buffer}
}

// Subscribe registers a subscriber for an outlet
func (h *Hub) Subscribe(outletID string, collections ...string) *Subscription {
	ch := make(chan Change, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), Outlet: outletID, C: ch, ch: ch}
	sub.Watch(collections...)

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
}

// Publish delivers a change without blocking. Slow subscribers miss it.
func (h *Hub) Publish(c Change) {
	if h == nil {
		return
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.Outlet != c.Outlet || !sub.wants(c.Collection) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers is the number of live subscribers
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped is the number of changes not delivered to full subscribers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
