package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"carpool/internal/domain"
	"carpool/internal/realtime"
)

// defaultSyncBackoffs is the re-publish ladder for sync pings. The spread
// covers subscribers that connect or reconnect mid-flight and messages
// dropped in transit.
var defaultSyncBackoffs = []time.Duration{
	500 * time.Millisecond,
	1500 * time.Millisecond,
	3 * time.Second,
}

// Publisher makes committed mutations visible to other clients over the
// broadcast bus. Every announce publishes the full entity snapshot under
// the action's event name plus a lightweight sync ping, then re-publishes
// the ping at increasing delays. Publishing never blocks the caller and
// failures are only logged: the reconciler's periodic poll is the
// durability backstop.
type Publisher struct {
	rt       *realtime.Handle
	backoffs []time.Duration
	attempt  atomic.Int64

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// NewPublisher creates a Publisher on the given realtime handle. A nil
// backoffs slice selects the default re-publish ladder.
func NewPublisher(rt *realtime.Handle, backoffs []time.Duration) *Publisher {
	if backoffs == nil {
		backoffs = defaultSyncBackoffs
	}
	return &Publisher{
		rt:       rt,
		backoffs: backoffs,
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Announce broadcasts a committed mutation: the ride snapshot under kind,
// a sync ping immediately, and delayed sync re-publishes. Fire-and-forget.
func (p *Publisher) Announce(ride domain.Ride, kind domain.EventKind) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	snapshot := ride.Clone()
	go func() {
		ctx := context.Background()
		if err := p.rt.Publish(ctx, domain.Event{Kind: kind, Ride: &snapshot}); err != nil {
			log.Printf("publisher: %s event for ride %s: %v", kind, snapshot.ID, err)
		}
		p.publishSync(snapshot.ID)
	}()

	p.scheduleRetries(ride.ID)
}

func (p *Publisher) scheduleRetries(rideID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for _, delay := range p.backoffs {
		var timer *time.Timer
		timer = time.AfterFunc(delay, func() {
			p.mu.Lock()
			delete(p.timers, timer)
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return
			}
			p.publishSync(rideID)
		})
		p.timers[timer] = struct{}{}
	}
}

func (p *Publisher) publishSync(rideID string) {
	e := domain.Event{
		Kind:    domain.EventSync,
		RideID:  rideID,
		Attempt: int(p.attempt.Add(1)),
	}
	if err := p.rt.Publish(context.Background(), e); err != nil {
		log.Printf("publisher: sync ping for ride %s: %v", rideID, err)
	}
}

// Close cancels every pending sync re-publish. A disconnecting client must
// not leak timers.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	timers := make([]*time.Timer, 0, len(p.timers))
	for t := range p.timers {
		timers = append(timers, t)
	}
	p.timers = make(map[*time.Timer]struct{})
	p.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
