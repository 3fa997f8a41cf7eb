package bus

import (
	"context"
	"sync"
)

// Hub broadcasts one stream of T to any number of subscribers. Publish
// never blocks the producer: a subscriber whose backlog is full loses
// its oldest message first, so slow consumers lag toward the newest
// data instead of stalling the graph.
type Hub[T any] struct {
	mu       sync.RWMutex
	subs     map[int]chan T
	next     int
	capacity int
	closed   bool
}

// NewHub allocates a hub whose subscribers buffer up to capacity messages.
func NewHub[T any](capacity int) *Hub[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Hub[T]{
		subs:     make(map[int]chan T),
		capacity: capacity,
	}
}

// Subscribe registers a consumer. The cancel func is idempotent and must
// be called when the consumer is done.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, h.capacity)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

// Publish delivers v to every subscriber without blocking.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for _, ch := range h.subs {
		select {
		case ch <- v:
		default:
			// backlog full: drop the oldest so the newest always lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// PublishSync delivers v to every subscriber, waiting for each one to
// accept. Replay sources use it so a slow consumer stretches the replay
// instead of losing ticks.
// The read lock is held across the sends so no channel can be closed
// mid-delivery; ctx still bounds the wait.
func (h *Hub[T]) PublishSync(ctx context.Context, v T) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	for _, ch := range h.subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- v:
		}
	}

	return nil
}

// Len returns the current subscriber count.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel and rejects further publishes.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
