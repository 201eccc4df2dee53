package postgres

import (
	"context"
	"database/sql"
	"time"

	"carpool/internal/domain"
)

// MembershipRepository is a PostgreSQL implementation of
// repository.MembershipRepository.
type MembershipRepository struct {
	q Querier
}

// NewMembershipRepository creates a new PostgreSQL membership repository.
func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{q: db}
}

// ListByRide retrieves the memberships of one ride in join order.
func (r *MembershipRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Membership, error) {
	query := `
		SELECT ride_id, user_id, phone, joined_at
		FROM memberships WHERE ride_id = $1 ORDER BY joined_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMemberships(rows)
}

// GetAll retrieves every membership record in join order.
func (r *MembershipRepository) GetAll(ctx context.Context) ([]*domain.Membership, error) {
	query := `
		SELECT ride_id, user_id, phone, joined_at
		FROM memberships ORDER BY joined_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMemberships(rows)
}

// Insert persists a new membership, assigning its join timestamp.
func (r *MembershipRepository) Insert(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO memberships (ride_id, user_id, phone, joined_at)
		VALUES ($1, $2, $3, $4)
	`

	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, query, m.RideID, m.UserID, m.Phone, m.JoinedAt)
	return err
}

// Delete removes a user's membership of a ride. Deleting a missing row is
// not an error: leave flows may race with another client's reconciliation.
func (r *MembershipRepository) Delete(ctx context.Context, rideID, userID string) error {
	query := `DELETE FROM memberships WHERE ride_id = $1 AND user_id = $2`

	_, err := r.q.ExecContext(ctx, query, rideID, userID)
	return err
}

func collectMemberships(rows *sql.Rows) ([]*domain.Membership, error) {
	var members []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.RideID, &m.UserID, &m.Phone, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}
