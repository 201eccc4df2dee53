// Package cache holds the client-local mirror of ride state. The store is
// owned exclusively by one client process; the persistence gateway is the
// source of truth and reconciliation overwrites local optimism with fresh
// authoritative reads.
package cache

import (
	"sync"
	"time"

	"carpool/internal/domain"
)

// Entry is the cached mirror of one ride plus its sync bookkeeping.
// Pending marks an optimistic local write that has not been confirmed by a
// gateway commit; a pending value must never be treated as final for
// invariant-checking purposes.
type Entry struct {
	Ride     domain.Ride
	Pending  bool
	SyncedAt time.Time
}

// Store is an in-memory ride cache safe for concurrent use. Reads see
// either the state before or after any write, never a partial one; the
// per-ride lock additionally serializes read-modify-write sequences that
// span a gateway round trip.
type Store struct {
	mu    sync.RWMutex
	rides map[string]Entry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		rides: make(map[string]Entry),
		locks: make(map[string]*sync.Mutex),
	}
}

// Get returns a copy of the cached entry for the given ride id.
func (s *Store) Get(rideID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rides[rideID]
	if !ok {
		return Entry{}, false
	}
	e.Ride = e.Ride.Clone()
	return e, true
}

// Rides returns a snapshot of every cached ride. Iteration order is
// undefined; callers must not depend on it.
func (s *Store) Rides() []domain.Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rides := make([]domain.Ride, 0, len(s.rides))
	for _, e := range s.rides {
		rides = append(rides, e.Ride.Clone())
	}
	return rides
}

// Len returns the number of cached rides.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rides)
}

// Put stores a ride. Pending marks the write as optimistic; a confirmed
// write stamps the sync time.
func (s *Store) Put(ride domain.Ride, pending bool) {
	e := Entry{Ride: ride.Clone(), Pending: pending}
	if !pending {
		e.SyncedAt = time.Now()
	}
	s.mu.Lock()
	s.rides[ride.ID] = e
	s.mu.Unlock()
}

// Restore reinstates a previously captured entry, used to roll the cache
// back to its last-known-good state after a failed commit.
func (s *Store) Restore(e Entry) {
	e.Ride = e.Ride.Clone()
	s.mu.Lock()
	s.rides[e.Ride.ID] = e
	s.mu.Unlock()
}

// Delete removes a ride from the cache.
func (s *Store) Delete(rideID string) {
	s.mu.Lock()
	delete(s.rides, rideID)
	s.mu.Unlock()
}

// ReplaceAll swaps the entire cache contents atomically. No reader ever
// observes a partially rebuilt cache. A confirmed entry that already
// matches the fresh read is carried over untouched, sync stamp included,
// so a rebuild with no upstream change leaves the cache stable.
func (s *Store) ReplaceAll(rides []domain.Ride) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]Entry, len(rides))
	for _, r := range rides {
		if e, ok := s.rides[r.ID]; ok && !e.Pending && ridesEqual(e.Ride, r) {
			next[r.ID] = e
			continue
		}
		next[r.ID] = Entry{Ride: r.Clone(), SyncedAt: now}
	}
	s.rides = next
}

// MergeAuthoritative applies a fresh authoritative read to the cache entry
// for ride.ID. Status, seat counts, and vehicle always follow the fetched
// record; the passenger list is replaced only when passengers is non-nil
// (single-record reconciles skip the membership read to bound cost). An
// uncached ride is inserted whole.
//
// The merge is a no-op when nothing differs, so repeated reconciliation
// with no upstream change leaves the entry untouched, sync stamp included.
func (s *Store) MergeAuthoritative(ride domain.Ride, passengers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rides[ride.ID]
	if !ok {
		fresh := ride.Clone()
		if passengers != nil {
			fresh.Passengers = append([]string(nil), passengers...)
		}
		s.rides[ride.ID] = Entry{Ride: fresh, SyncedAt: time.Now()}
		return
	}

	changed := e.Pending ||
		e.Ride.Status != ride.Status ||
		e.Ride.SeatsAvailable != ride.SeatsAvailable ||
		e.Ride.TotalSeats != ride.TotalSeats ||
		e.Ride.Vehicle != ride.Vehicle
	if passengers != nil && !equalPassengers(e.Ride.Passengers, passengers) {
		changed = true
	}
	if !changed {
		return
	}

	e.Ride.Status = ride.Status
	e.Ride.SeatsAvailable = ride.SeatsAvailable
	e.Ride.TotalSeats = ride.TotalSeats
	e.Ride.Vehicle = ride.Vehicle
	if passengers != nil {
		e.Ride.Passengers = append([]string(nil), passengers...)
	}
	e.Pending = false
	e.SyncedAt = time.Now()
	s.rides[ride.ID] = e
}

// LockRide acquires the write lock for one ride id and returns the unlock
// func. Mutation flows hold it across reconcile, transition, commit, and
// the final cache write so no two flows read-modify-write the same entry
// concurrently.
func (s *Store) LockRide(rideID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[rideID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[rideID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func ridesEqual(a, b domain.Ride) bool {
	return a.ID == b.ID &&
		a.CreatorID == b.CreatorID &&
		a.Origin == b.Origin &&
		a.Destination == b.Destination &&
		a.TotalSeats == b.TotalSeats &&
		a.SeatsAvailable == b.SeatsAvailable &&
		a.Status == b.Status &&
		a.Vehicle == b.Vehicle &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		equalPassengers(a.Passengers, b.Passengers)
}

func equalPassengers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
