package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler consumes one event. Handlers must not assume delivery survives a
// process restart; the ledger mutation always commits before dispatch.
type Handler func(ctx context.Context, payload interface{})

// Bus is the in-process publish point between the reservation core and its
// collaborators. Dispatch is synchronous and fire-and-forget: a panicking
// listener is recovered and logged, and never unwinds into the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]Handler)}
}

// Subscribe registers a handler for a topic. Not safe to call concurrently
// with itself for the same bus during Publish-heavy load; wiring happens at
// startup.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Publish dispatches payload to every subscriber of topic, in subscription
// order.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := b.subs[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, topic, h, payload)
	}
}

func (b *Bus) dispatch(ctx context.Context, topic Topic, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", string(topic)).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	h(ctx, payload)
}
