package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
//
// The passenger list is not stored on the ride row; it is derived from the
// memberships table, so rides returned here carry a nil Passengers slice.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

const rideColumns = `id, creator_id, origin_lat, origin_lng, origin_address,
		destination_lat, destination_lng, destination_address,
		total_seats, seats_available, status, vehicle, created_at`

// Create persists a new ride, assigning its id and creation timestamp.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	ride.ID = uuid.New().String()
	ride.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.CreatorID,
		ride.Origin.Lat,
		ride.Origin.Lng,
		ride.Origin.Address,
		ride.Destination.Lat,
		ride.Destination.Lng,
		ride.Destination.Address,
		ride.TotalSeats,
		ride.SeatsAvailable,
		ride.Status,
		ride.Vehicle,
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a single authoritative ride record.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetAll retrieves every ride record.
func (r *RideRepository) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update replaces the full ride row.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET creator_id = $1, origin_lat = $2, origin_lng = $3, origin_address = $4,
		    destination_lat = $5, destination_lng = $6, destination_address = $7,
		    total_seats = $8, seats_available = $9, status = $10, vehicle = $11
		WHERE id = $12
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.CreatorID,
		ride.Origin.Lat,
		ride.Origin.Lng,
		ride.Origin.Address,
		ride.Destination.Lat,
		ride.Destination.Lng,
		ride.Destination.Address,
		ride.TotalSeats,
		ride.SeatsAvailable,
		ride.Status,
		ride.Vehicle,
		ride.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	err := row.Scan(
		&ride.ID,
		&ride.CreatorID,
		&ride.Origin.Lat,
		&ride.Origin.Lng,
		&ride.Origin.Address,
		&ride.Destination.Lat,
		&ride.Destination.Lng,
		&ride.Destination.Address,
		&ride.TotalSeats,
		&ride.SeatsAvailable,
		&ride.Status,
		&ride.Vehicle,
		&ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}
