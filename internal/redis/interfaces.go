package redis

import (
	"context"
	"time"
)

// BusInterface defines the broadcast bus contract consumed by the
// realtime layer. Delivery is at-least-once at best, unordered, and
// unconfirmed.
type BusInterface interface {
	Publish(ctx context.Context, topic, event string, payload []byte) error
	Subscribe(topic, event string, handler func(payload []byte)) (func(), error)
}

// LockStoreInterface defines the interface for per-ride commit locking.
type LockStoreInterface interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ BusInterface       = (*Bus)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
)
