package cache

import (
	"reflect"
	"sync"
	"testing"

	"carpool/internal/domain"
)

func ride(id string, seats int, passengers ...string) domain.Ride {
	return domain.Ride{
		ID:             id,
		CreatorID:      "creator",
		TotalSeats:     seats,
		SeatsAvailable: seats - len(passengers),
		Status:         domain.RideStatusOpen,
		Vehicle:        domain.VehicleCar,
		Passengers:     passengers,
	}
}

func TestStore_PutAndGetReturnCopies(t *testing.T) {
	s := NewStore()
	r := ride("r1", 3, "creator")
	s.Put(r, false)

	e, ok := s.Get("r1")
	if !ok {
		t.Fatal("expected cached entry")
	}
	e.Ride.Passengers[0] = "mutated"

	e2, _ := s.Get("r1")
	if e2.Ride.Passengers[0] != "creator" {
		t.Error("cache entry shares passenger slice with readers")
	}
}

func TestStore_PendingWriteIsTagged(t *testing.T) {
	s := NewStore()
	s.Put(ride("r1", 3, "creator"), true)

	e, _ := s.Get("r1")
	if !e.Pending {
		t.Error("expected pending entry")
	}
	if !e.SyncedAt.IsZero() {
		t.Error("pending write must not claim a sync time")
	}
}

func TestStore_RestoreRevertsToLastKnownGood(t *testing.T) {
	s := NewStore()
	s.Put(ride("r1", 3, "creator"), false)
	before, _ := s.Get("r1")

	next := ride("r1", 3, "creator", "user2")
	s.Put(next, true)
	s.Restore(before)

	after, _ := s.Get("r1")
	if len(after.Ride.Passengers) != 1 || after.Pending {
		t.Errorf("expected restored entry, got %+v", after)
	}
}

func TestStore_ReplaceAllSwapsAtomically(t *testing.T) {
	s := NewStore()
	s.Put(ride("old", 3, "creator"), false)

	s.ReplaceAll([]domain.Ride{ride("a", 2, "creator"), ride("b", 4, "creator")})

	if _, ok := s.Get("old"); ok {
		t.Error("stale entry survived ReplaceAll")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
}

func TestStore_MergeAuthoritativeOverwritesScalars(t *testing.T) {
	s := NewStore()
	local := ride("r1", 3, "creator", "user2")
	s.Put(local, true) // optimistic

	authoritative := ride("r1", 3)
	authoritative.SeatsAvailable = 0
	authoritative.Status = domain.RideStatusFull

	s.MergeAuthoritative(authoritative, nil)

	e, _ := s.Get("r1")
	if e.Ride.Status != domain.RideStatusFull || e.Ride.SeatsAvailable != 0 {
		t.Errorf("authoritative fields not applied: %+v", e.Ride)
	}
	// Membership untouched on a scalar-only merge.
	if len(e.Ride.Passengers) != 2 {
		t.Errorf("passenger list should be kept, got %v", e.Ride.Passengers)
	}
	if e.Pending {
		t.Error("merge must clear the pending tag")
	}
}

func TestStore_MergeAuthoritativeIsIdempotent(t *testing.T) {
	s := NewStore()
	r := ride("r1", 3, "creator", "user2")
	s.MergeAuthoritative(r, []string{"creator", "user2"})

	first, _ := s.Get("r1")

	// No intervening authoritative change: repeated merges must leave the
	// entry untouched, sync stamp included.
	s.MergeAuthoritative(r, []string{"creator", "user2"})
	s.MergeAuthoritative(r, nil)

	second, _ := s.Get("r1")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated merge changed the entry:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestStore_MergeInsertsUnknownRide(t *testing.T) {
	s := NewStore()
	s.MergeAuthoritative(ride("r1", 3), []string{"creator"})

	e, ok := s.Get("r1")
	if !ok {
		t.Fatal("expected inserted entry")
	}
	if len(e.Ride.Passengers) != 1 {
		t.Errorf("expected passengers from merge, got %v", e.Ride.Passengers)
	}
}

func TestStore_ReplaceAllKeepsUnchangedEntries(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]domain.Ride{ride("r1", 3, "creator")})
	before, _ := s.Get("r1")

	s.ReplaceAll([]domain.Ride{ride("r1", 3, "creator")})
	after, _ := s.Get("r1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("no-change rebuild churned the entry:\nbefore: %+v\nafter:  %+v", before, after)
	}

	// A pending entry is always replaced by the authoritative read.
	s.Put(ride("r1", 3, "creator", "user2"), true)
	s.ReplaceAll([]domain.Ride{ride("r1", 3, "creator")})
	e, _ := s.Get("r1")
	if e.Pending {
		t.Error("rebuild left a pending tag behind")
	}
	if len(e.Ride.Passengers) != 1 {
		t.Errorf("rebuild kept optimistic passengers: %v", e.Ride.Passengers)
	}

	// A genuinely changed ride gets the fresh state and a fresh stamp.
	s.ReplaceAll([]domain.Ride{ride("r1", 3, "creator", "user2")})
	e, _ = s.Get("r1")
	if len(e.Ride.Passengers) != 2 {
		t.Errorf("rebuild dropped the upstream change: %v", e.Ride.Passengers)
	}
}

func TestStore_LockRideSerializesReadModifyWrite(t *testing.T) {
	s := NewStore()
	s.Put(ride("r1", 8, "creator"), false)

	// 20 concurrent joiners each do a locked read-modify-write; with the
	// per-ride lock every increment lands.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.LockRide("r1")
			defer unlock()
			e, _ := s.Get("r1")
			e.Ride.SeatsAvailable--
			s.Put(e.Ride, false)
		}()
	}
	wg.Wait()

	e, _ := s.Get("r1")
	if e.Ride.SeatsAvailable != 8-1-20 {
		t.Errorf("lost update: seats=%d", e.Ride.SeatsAvailable)
	}
}
