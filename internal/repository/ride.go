package repository

import (
	"context"

	"carpool/internal/domain"
)

// RideRepository defines the persistence gateway operations for rides.
// The store is the single source of truth: every business mutation funnels
// through it before being surfaced to any client cache.
type RideRepository interface {
	// Create persists a new ride, assigning its id and creation timestamp.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a single authoritative ride record.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetAll retrieves every ride record.
	GetAll(ctx context.Context) ([]*domain.Ride, error)

	// Update replaces the full ride row. The gateway offers no partial or
	// conditional update: callers must supply the complete intended row.
	Update(ctx context.Context, ride *domain.Ride) error
}
