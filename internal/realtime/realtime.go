// Package realtime wraps the broadcast bus in an explicit connection
// object with a clear lifecycle: Open ties a handle to one client
// identity, Close releases every subscription. Components that publish or
// subscribe receive a handle by injection; there is no ambient shared
// connection.
package realtime

import (
	"context"
	"log"
	"sync"

	"carpool/internal/domain"
	"carpool/internal/redis"
)

// Handle is one client's connection to the broadcast topic.
type Handle struct {
	identity string
	topic    string
	bus      redis.BusInterface

	mu      sync.Mutex
	unsubs  []func()
	closed  bool
}

// Open creates a handle for the given client identity on a topic.
func Open(identity, topic string, bus redis.BusInterface) *Handle {
	return &Handle{
		identity: identity,
		topic:    topic,
		bus:      bus,
	}
}

// Identity returns the client identity this handle was opened for.
func (h *Handle) Identity() string { return h.identity }

// Publish encodes an event and sends it under its kind's event name.
// Fire-and-forget: an error means only that the local publish failed.
func (h *Handle) Publish(ctx context.Context, e domain.Event) error {
	payload, err := domain.EncodeEvent(e)
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, h.topic, string(e.Kind), payload)
}

// SubscribeAll registers the handler for every event kind on the topic.
// Payloads are decoded exactly once here; handlers only ever see valid
// events from the closed variant set. Undecodable payloads are logged and
// dropped.
func (h *Handle) SubscribeAll(handler func(domain.Event)) error {
	kinds := []domain.EventKind{
		domain.EventCreated,
		domain.EventUpdated,
		domain.EventJoined,
		domain.EventLeft,
		domain.EventSync,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	for _, kind := range kinds {
		unsub, err := h.bus.Subscribe(h.topic, string(kind), func(payload []byte) {
			e, err := domain.DecodeEvent(payload)
			if err != nil {
				log.Printf("realtime: dropping payload: %v", err)
				return
			}
			handler(e)
		})
		if err != nil {
			return err
		}
		h.unsubs = append(h.unsubs, unsub)
	}
	return nil
}

// Close releases every subscription held by the handle. Safe to call more
// than once.
func (h *Handle) Close() {
	h.mu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	h.closed = true
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
