package redis

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus is a Redis pub/sub implementation of the broadcast bus. Channels are
// keyed by (topic, event name). Delivery is fan-out with no ordering or
// de-duplication guarantees: subscribers must treat messages as hints, not
// state.
type Bus struct {
	client *redis.Client

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewBus creates a new Bus on the given client.
func NewBus(client *redis.Client) *Bus {
	return &Bus{
		client: client,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func channelName(topic, event string) string {
	return topic + ":" + event
}

// Publish sends a payload to every current subscriber of (topic, event).
// There is no delivery confirmation; an error means only that the local
// publish call failed.
func (b *Bus) Publish(ctx context.Context, topic, event string, payload []byte) error {
	return b.client.Publish(ctx, channelName(topic, event), payload).Err()
}

// Subscribe registers a handler for (topic, event) and returns an
// unsubscribe func. The handler runs on a dedicated goroutine and may be
// invoked zero or more times, in any order relative to publishes.
func (b *Bus) Subscribe(topic, event string, handler func(payload []byte)) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}, nil
	}
	sub := b.client.Subscribe(context.Background(), channelName(topic, event))
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	// Wait for the subscription to be confirmed so messages published
	// after Subscribe returns are not missed.
	if _, err := sub.Receive(context.Background()); err != nil {
		b.remove(sub)
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	return func() {
		b.remove(sub)
		if err := sub.Close(); err != nil {
			log.Printf("bus: closing subscription: %v", err)
		}
	}, nil
}

// Close tears down every active subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *Bus) remove(sub *redis.PubSub) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
