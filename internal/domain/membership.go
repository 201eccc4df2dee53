package domain

import "time"

// Membership binds a user to a ride as a passenger, with the contact phone
// captured at join time. Rows are insert-only: a membership is created on
// join and deleted when a non-creator leaves. Memberships of terminal rides
// are retained for history.
type Membership struct {
	RideID   string
	UserID   string
	Phone    string
	JoinedAt time.Time
}
