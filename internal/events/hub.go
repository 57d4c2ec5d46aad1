package events

import (
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

// DefaultBuffer is the per-subscriber channel capacity
const DefaultBuffer = 64

// Qualified prefixes an event name, e.g. "TaskMonitorPlus.Activated.firefox"
func Qualified(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Hub fans events out to channel subscribers. A subscriber that falls
// behind misses events rather than blocking the tracker.
type Hub struct {
	mu        sync.RWMutex
	listeners []chan tracker.Event
	buffer    int
	closed    bool
	dropped   atomic.Uint64
}

// NewHub creates a Hub whose subscriber channels hold buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer}
}

// Subscribe adds a listener
func (h *Hub) Subscribe() chan tracker.Event {
	ch := make(chan tracker.Event, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.listeners = append(h.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *Hub) Unsubscribe(ch chan tracker.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Emit implements tracker.Emitter
func (h *Hub) Emit(ev tracker.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, listener := range h.listeners {
		select {
		case listener <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of listeners
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Dropped returns how many deliveries were skipped on full channels
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close closes every listener; later subscribers get a closed channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, listener := range h.listeners {
		close(listener)
	}
	h.listeners = nil
	h.closed = true
}

// Multi emits to several emitters in order
type Multi []tracker.Emitter

// Emit implements tracker.Emitter
func (m Multi) Emit(ev tracker.Event) {
	for _, e := range m {
		e.Emit(ev)
	}
}
