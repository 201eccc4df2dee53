package repository

import (
	"context"

	"carpool/internal/domain"
)

// MembershipRepository defines the persistence gateway operations for
// ride memberships. Rows are never mutated in place: a membership is
// inserted on join and deleted on leave.
type MembershipRepository interface {
	// ListByRide retrieves the memberships of one ride in join order.
	ListByRide(ctx context.Context, rideID string) ([]*domain.Membership, error)

	// GetAll retrieves every membership record, used when rebuilding a
	// full local cache in one pass.
	GetAll(ctx context.Context) ([]*domain.Membership, error)

	// Insert persists a new membership.
	Insert(ctx context.Context, m *domain.Membership) error

	// Delete removes a user's membership of a ride.
	Delete(ctx context.Context, rideID, userID string) error
}
