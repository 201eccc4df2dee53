package service

import (
	"errors"
	"testing"

	"carpool/internal/domain"
)

func openRide(totalSeats int, passengers ...string) domain.Ride {
	return domain.Ride{
		ID:             "ride-1",
		CreatorID:      "creator",
		TotalSeats:     totalSeats,
		SeatsAvailable: totalSeats - len(passengers),
		Status:         domain.RideStatusOpen,
		Vehicle:        domain.VehicleCar,
		Passengers:     passengers,
	}
}

func checkSeatInvariant(t *testing.T, r domain.Ride) {
	t.Helper()
	if r.SeatsAvailable+len(r.Passengers) != r.TotalSeats {
		t.Errorf("seat invariant violated: available=%d passengers=%d total=%d",
			r.SeatsAvailable, len(r.Passengers), r.TotalSeats)
	}
}

func TestJoin_AddsPassengerAndDecrementsSeats(t *testing.T) {
	ride := openRide(3, "creator")

	next, err := applyJoin(ride, "user2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.SeatsAvailable != 1 {
		t.Errorf("expected 1 seat available, got %d", next.SeatsAvailable)
	}
	if next.Status != domain.RideStatusOpen {
		t.Errorf("expected status open, got %s", next.Status)
	}
	if len(next.Passengers) != 2 || next.Passengers[1] != "user2" {
		t.Errorf("expected passengers [creator user2], got %v", next.Passengers)
	}
	checkSeatInvariant(t, next)
}

func TestJoin_LastSeatFlipsToFull(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	next, err := applyJoin(ride, "user3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.SeatsAvailable != 0 {
		t.Errorf("expected 0 seats available, got %d", next.SeatsAvailable)
	}
	if next.Status != domain.RideStatusFull {
		t.Errorf("expected status full, got %s", next.Status)
	}
	checkSeatInvariant(t, next)
}

func TestJoin_FullRideFailsWithoutMutation(t *testing.T) {
	ride := openRide(2, "creator", "user2")
	ride.Status = domain.RideStatusFull

	_, err := applyJoin(ride, "user3")
	if !errors.Is(err, ErrRideNotOpen) {
		t.Fatalf("expected ErrRideNotOpen, got %v", err)
	}

	// Input is untouched.
	if len(ride.Passengers) != 2 || ride.SeatsAvailable != 0 {
		t.Errorf("input ride mutated: %+v", ride)
	}
}

func TestJoin_ZeroSeatsAlwaysFails(t *testing.T) {
	// Status open but no seats: defensive, should still refuse.
	ride := openRide(2, "creator", "user2")

	_, err := applyJoin(ride, "user3")
	if !errors.Is(err, ErrRideNotOpen) {
		t.Errorf("expected ErrRideNotOpen, got %v", err)
	}
}

func TestJoin_ExistingMemberFails(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	_, err := applyJoin(ride, "user2")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestJoin_TerminalStatusFails(t *testing.T) {
	for _, status := range []domain.RideStatus{domain.RideStatusCompleted, domain.RideStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			ride := openRide(3, "creator")
			ride.Status = status

			_, err := applyJoin(ride, "user2")
			if !errors.Is(err, ErrRideNotOpen) {
				t.Errorf("expected ErrRideNotOpen, got %v", err)
			}
		})
	}
}

func TestLeave_FreesSeatAndDemotesFull(t *testing.T) {
	ride := openRide(3, "creator", "user2", "user3")
	ride.Status = domain.RideStatusFull

	next, err := applyLeave(ride, "user2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.SeatsAvailable != 1 {
		t.Errorf("expected 1 seat available, got %d", next.SeatsAvailable)
	}
	if next.Status != domain.RideStatusOpen {
		t.Errorf("expected status open, got %s", next.Status)
	}
	if len(next.Passengers) != 2 || next.Passengers[0] != "creator" || next.Passengers[1] != "user3" {
		t.Errorf("expected passengers [creator user3], got %v", next.Passengers)
	}
	checkSeatInvariant(t, next)
}

func TestLeave_ByCreatorCancelsWholeRide(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	next, err := applyLeave(ride, "creator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", next.Status)
	}
	// Seat and membership fields freeze; the creator is not removed.
	if next.SeatsAvailable != 1 || len(next.Passengers) != 2 {
		t.Errorf("expected frozen seats/passengers, got seats=%d passengers=%v",
			next.SeatsAvailable, next.Passengers)
	}
}

func TestLeave_NonMemberFails(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	_, err := applyLeave(ride, "stranger")
	if !errors.Is(err, ErrNotAMember) {
		t.Errorf("expected ErrNotAMember, got %v", err)
	}
}

func TestLeave_TerminalRideFailsForNonCreator(t *testing.T) {
	ride := openRide(3, "creator", "user2")
	ride.Status = domain.RideStatusCancelled

	_, err := applyLeave(ride, "user2")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_Transitions(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	next, err := applyCancel(ride, "creator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", next.Status)
	}
}

func TestCancel_NonCreatorFails(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	_, err := applyCancel(ride, "user2")
	if !errors.Is(err, ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestCancel_AlreadyTerminalFails(t *testing.T) {
	ride := openRide(3, "creator")
	ride.Status = domain.RideStatusCompleted

	_, err := applyCancel(ride, "creator")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestComplete_Transitions(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	next, err := applyComplete(ride, "creator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", next.Status)
	}
	checkSeatInvariant(t, next)
}

func TestComplete_NonCreatorFails(t *testing.T) {
	ride := openRide(3, "creator", "user2")

	_, err := applyComplete(ride, "user2")
	if !errors.Is(err, ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestComplete_AlreadyTerminalFails(t *testing.T) {
	ride := openRide(3, "creator")
	ride.Status = domain.RideStatusCancelled

	_, err := applyComplete(ride, "creator")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}

// Full lifecycle walk: 3 seats, two joins fill the ride, a fourth join is
// refused, a leave reopens it, a cancel freezes it.
func TestLifecycle_Scenario(t *testing.T) {
	ride := openRide(3, "creator")
	if ride.SeatsAvailable != 2 {
		t.Fatalf("expected 2 seats after creation, got %d", ride.SeatsAvailable)
	}

	ride, err := applyJoin(ride, "user2")
	if err != nil {
		t.Fatalf("join user2: %v", err)
	}
	if ride.SeatsAvailable != 1 || ride.Status != domain.RideStatusOpen {
		t.Fatalf("after user2: seats=%d status=%s", ride.SeatsAvailable, ride.Status)
	}

	ride, err = applyJoin(ride, "user3")
	if err != nil {
		t.Fatalf("join user3: %v", err)
	}
	if ride.SeatsAvailable != 0 || ride.Status != domain.RideStatusFull {
		t.Fatalf("after user3: seats=%d status=%s", ride.SeatsAvailable, ride.Status)
	}

	if _, err := applyJoin(ride, "user4"); !errors.Is(err, ErrRideNotOpen) {
		t.Fatalf("expected ErrRideNotOpen for user4, got %v", err)
	}

	ride, err = applyLeave(ride, "user2")
	if err != nil {
		t.Fatalf("leave user2: %v", err)
	}
	if ride.SeatsAvailable != 1 || ride.Status != domain.RideStatusOpen {
		t.Fatalf("after leave: seats=%d status=%s", ride.SeatsAvailable, ride.Status)
	}
	if len(ride.Passengers) != 2 || ride.Passengers[0] != "creator" || ride.Passengers[1] != "user3" {
		t.Fatalf("after leave: passengers=%v", ride.Passengers)
	}

	ride, err = applyCancel(ride, "creator")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ride.Status != domain.RideStatusCancelled {
		t.Fatalf("after cancel: status=%s", ride.Status)
	}

	// Terminal: nothing moves any more.
	if _, err := applyLeave(ride, "user3"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after cancel, got %v", err)
	}
	if _, err := applyCancel(ride, "creator"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
	if _, err := applyComplete(ride, "creator"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}
