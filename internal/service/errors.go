package service

import "errors"

var (
	// ErrNotAuthenticated is returned when a mutation is attempted with no
	// actor identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyMember is returned when the actor is already a passenger.
	ErrAlreadyMember = errors.New("already a member of this ride")

	// ErrNotAMember is returned when the actor is neither the creator nor
	// a passenger.
	ErrNotAMember = errors.New("not a member of this ride")

	// ErrRideNotOpen is returned when joining a ride that is full,
	// completed, or cancelled.
	ErrRideNotOpen = errors.New("ride is not open")

	// ErrNotCreator is returned when a creator-only action is attempted by
	// another user.
	ErrNotCreator = errors.New("only the ride creator can do this")

	// ErrAlreadyTerminal is returned when cancelling or completing a ride
	// that is already completed or cancelled.
	ErrAlreadyTerminal = errors.New("ride is already completed or cancelled")

	// ErrInvalidTransition is returned for any other transition the state
	// machine forbids, such as leaving a terminal ride.
	ErrInvalidTransition = errors.New("invalid ride state transition")

	// ErrInvalidSeatCount is returned when a ride is created with fewer
	// than two or more than eight total seats.
	ErrInvalidSeatCount = errors.New("invalid seat count")

	// ErrInvalidOrigin is returned when origin coordinates are invalid.
	ErrInvalidOrigin = errors.New("invalid origin location")

	// ErrInvalidDestination is returned when destination coordinates are
	// invalid.
	ErrInvalidDestination = errors.New("invalid destination location")

	// ErrInvalidVehicle is returned when the vehicle category is unknown.
	ErrInvalidVehicle = errors.New("invalid vehicle category")

	// ErrPhoneRequired is returned when a join or create carries no
	// contact phone.
	ErrPhoneRequired = errors.New("contact phone is required")

	// ErrRideNotCached is returned when an operation references a ride the
	// local cache has never seen and the gateway does not know either.
	ErrRideNotCached = errors.New("ride not found")
)

// IsValidation reports whether err is one of the state-machine or input
// validation errors, which are safe to surface directly to the end user
// and must never be retried automatically.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrNotAuthenticated,
		ErrAlreadyMember,
		ErrNotAMember,
		ErrRideNotOpen,
		ErrNotCreator,
		ErrAlreadyTerminal,
		ErrInvalidTransition,
		ErrInvalidSeatCount,
		ErrInvalidOrigin,
		ErrInvalidDestination,
		ErrInvalidVehicle,
		ErrPhoneRequired,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
