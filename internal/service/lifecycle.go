package service

import (
	"carpool/internal/domain"
)

// Seat/status accounting: pure transition functions over the ride state
// machine. Each function computes the intended next state from the
// current one and never mutates its input or touches storage. Callers are
// responsible for committing the result and for the race where the
// authoritative store has diverged since the input was read; the
// reconcile-before-mutate discipline in RideService handles that.

// applyJoin adds a passenger and decrements the free seat count, flipping
// the ride to full when the last seat is taken.
func applyJoin(r domain.Ride, actorID string) (domain.Ride, error) {
	if r.HasPassenger(actorID) {
		return domain.Ride{}, ErrAlreadyMember
	}
	if r.Status != domain.RideStatusOpen || r.SeatsAvailable <= 0 {
		return domain.Ride{}, ErrRideNotOpen
	}

	next := r.Clone()
	next.Passengers = append(next.Passengers, actorID)
	next.SeatsAvailable--
	if next.SeatsAvailable == 0 {
		next.Status = domain.RideStatusFull
	}
	return next, nil
}

// applyLeave removes a non-creator passenger and frees their seat,
// demoting a full ride back to open. The creator cannot simply leave: a
// creator leave is a cancel of the whole ride.
func applyLeave(r domain.Ride, actorID string) (domain.Ride, error) {
	if actorID == r.CreatorID {
		return applyCancel(r, actorID)
	}
	if !r.HasPassenger(actorID) {
		return domain.Ride{}, ErrNotAMember
	}
	if r.Status.Terminal() {
		return domain.Ride{}, ErrInvalidTransition
	}

	next := r.Clone()
	passengers := next.Passengers[:0]
	for _, p := range next.Passengers {
		if p != actorID {
			passengers = append(passengers, p)
		}
	}
	next.Passengers = passengers
	next.SeatsAvailable++
	if next.Status == domain.RideStatusFull {
		next.Status = domain.RideStatusOpen
	}
	return next, nil
}

// applyCancel terminates the ride. Membership and seat fields freeze at
// their current values.
func applyCancel(r domain.Ride, actorID string) (domain.Ride, error) {
	if actorID != r.CreatorID {
		return domain.Ride{}, ErrNotCreator
	}
	if r.Status.Terminal() {
		return domain.Ride{}, ErrAlreadyTerminal
	}

	next := r.Clone()
	next.Status = domain.RideStatusCancelled
	return next, nil
}

// applyComplete marks the ride completed. Membership and seat fields
// freeze at their current values.
func applyComplete(r domain.Ride, actorID string) (domain.Ride, error) {
	if actorID != r.CreatorID {
		return domain.Ride{}, ErrNotCreator
	}
	if r.Status.Terminal() {
		return domain.Ride{}, ErrAlreadyTerminal
	}

	next := r.Clone()
	next.Status = domain.RideStatusCompleted
	return next, nil
}
