package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"carpool/internal/cache"
	"carpool/internal/domain"
	"carpool/internal/repository"
)

// Polling intervals for the reconciliation backstop. The tighter interval
// applies while at least one ride is being actively watched.
const (
	DefaultPollInterval = 10 * time.Second
	WatchPollInterval   = 5 * time.Second
)

// Reconciler keeps the local ride cache close to the persistence
// gateway's truth. There is no merge policy beyond "the authoritative
// read wins": local optimistic state is discarded in its favor, which is
// safe because every business mutation funnels through the gateway before
// being surfaced locally.
type Reconciler struct {
	rideRepo   repository.RideRepository
	memberRepo repository.MembershipRepository
	cache      *cache.Store

	watchMu sync.Mutex
	watched map[string]int
}

// NewReconciler creates a new Reconciler over the given gateway repos and
// local cache.
func NewReconciler(rideRepo repository.RideRepository, memberRepo repository.MembershipRepository, store *cache.Store) *Reconciler {
	return &Reconciler{
		rideRepo:   rideRepo,
		memberRepo: memberRepo,
		cache:      store,
		watched:    make(map[string]int),
	}
}

// ReconcileOne fetches the single authoritative record for a ride and
// merges it into the cache. A fetch failure leaves the cache untouched
// and is returned to the caller; this component never retries on its own.
func (r *Reconciler) ReconcileOne(ctx context.Context, rideID string) error {
	unlock := r.cache.LockRide(rideID)
	defer unlock()
	return r.ReconcileOneLocked(ctx, rideID)
}

// ReconcileOneLocked is ReconcileOne for callers that already hold the
// ride's cache write lock, such as a mutation flow that must reconcile
// immediately before validating its action.
//
// The membership list is refreshed only when the ride is not cached yet;
// an already-cached entry keeps its passenger list until the next full
// reconciliation, bounding the cost of the hot path.
func (r *Reconciler) ReconcileOneLocked(ctx context.Context, rideID string) error {
	ride, err := r.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.cache.Delete(rideID)
		}
		return err
	}

	if _, cached := r.cache.Get(rideID); cached {
		r.cache.MergeAuthoritative(*ride, nil)
		return nil
	}

	members, err := r.memberRepo.ListByRide(ctx, rideID)
	if err != nil {
		return err
	}
	passengers := make([]string, 0, len(members))
	for _, m := range members {
		passengers = append(passengers, m.UserID)
	}
	r.cache.MergeAuthoritative(*ride, passengers)
	return nil
}

// ReconcileAll rebuilds the entire cache from a full authoritative read
// and swaps it in atomically: no reader observes a partially rebuilt
// cache. A failed fetch leaves the existing cache untouched.
func (r *Reconciler) ReconcileAll(ctx context.Context) error {
	rides, err := r.rideRepo.GetAll(ctx)
	if err != nil {
		return err
	}
	members, err := r.memberRepo.GetAll(ctx)
	if err != nil {
		return err
	}

	// Memberships arrive in join order, so appending preserves it.
	byRide := make(map[string][]string)
	for _, m := range members {
		byRide[m.RideID] = append(byRide[m.RideID], m.UserID)
	}

	fresh := make([]domain.Ride, 0, len(rides))
	for _, ride := range rides {
		rr := ride.Clone()
		rr.Passengers = byRide[rr.ID]
		fresh = append(fresh, rr)
	}
	r.cache.ReplaceAll(fresh)
	return nil
}

// Watch marks a ride as actively observed, tightening the polling
// interval. Calls nest; each Watch needs a matching Unwatch.
func (r *Reconciler) Watch(rideID string) {
	r.watchMu.Lock()
	r.watched[rideID]++
	r.watchMu.Unlock()
}

// Unwatch releases a Watch.
func (r *Reconciler) Unwatch(rideID string) {
	r.watchMu.Lock()
	if r.watched[rideID] > 1 {
		r.watched[rideID]--
	} else {
		delete(r.watched, rideID)
	}
	r.watchMu.Unlock()
}

func (r *Reconciler) pollInterval() time.Duration {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if len(r.watched) > 0 {
		return WatchPollInterval
	}
	return DefaultPollInterval
}

// Run polls the gateway until ctx is cancelled. The poll is the
// durability backstop for lost broadcasts, so failures are only logged;
// the next tick retries naturally.
func (r *Reconciler) Run(ctx context.Context) {
	timer := time.NewTimer(r.pollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := r.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
				log.Printf("reconciler: poll failed: %v", err)
			}
			timer.Reset(r.pollInterval())
		}
	}
}
