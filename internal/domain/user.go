package domain

import "time"

// User represents a registered rider or ride creator.
type User struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}
