// Package events implements the in-process pub/sub transport standing in
// for the out-of-scope UI event channel (spec §6 "Event surface"): every
// long-running component publishes onto a shared Bus, and the daemon CLI
// drains it to stdout/NDJSON when run with --json.
package events

import (
	"log/slog"
	"sync"
)

// Event is one published message: a topic plus an arbitrary JSON-serializable
// payload.
type Event struct {
	Topic   string
	Payload any
}

// Bus is a small typed pub/sub hub. The zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	logger      *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{subscribers: make(map[int]chan Event), logger: logger}
}

// Publish fans payload out to every current subscriber. A subscriber whose
// channel is full has the event dropped for it rather than blocking the
// publisher; this mirrors the spec's "best-effort" event surface since
// nothing downstream of the shell depends on delivery for correctness.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	evt := Event{Topic: topic, Payload: payload}

	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("events: subscriber channel full, dropping event", slog.Int("subscriber_id", id), slog.String("topic", topic))
		}
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel is buffered so a slow consumer doesn't
// stall other subscribers on Publish.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}
