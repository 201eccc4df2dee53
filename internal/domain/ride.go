package domain

import "time"

// RideStatus represents the current lifecycle status of a ride.
type RideStatus string

const (
	RideStatusOpen      RideStatus = "open"
	RideStatusFull      RideStatus = "full"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Terminal reports whether the status permits no further seat or
// membership mutation.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Vehicle represents the vehicle category of a ride offer.
type Vehicle string

const (
	VehicleCar  Vehicle = "car"
	VehicleSUV  Vehicle = "suv"
	VehicleVan  Vehicle = "van"
	VehicleBike Vehicle = "bike"
)

// Valid reports whether v is one of the known vehicle categories.
func (v Vehicle) Valid() bool {
	switch v {
	case VehicleCar, VehicleSUV, VehicleVan, VehicleBike:
		return true
	}
	return false
}

// Location is a coordinate pair with a display address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// Ride represents a shared-ride offer.
//
// SeatsAvailable always equals TotalSeats minus the passenger count after a
// committed mutation, and the creator is the first passenger for the
// ride's non-terminal lifetime.
type Ride struct {
	ID             string
	CreatorID      string
	Origin         Location
	Destination    Location
	TotalSeats     int
	SeatsAvailable int
	Status         RideStatus
	Vehicle        Vehicle
	Passengers     []string // join order, creator first
	CreatedAt      time.Time
}

// HasPassenger reports whether userID is currently in the passenger list.
func (r *Ride) HasPassenger(userID string) bool {
	for _, p := range r.Passengers {
		if p == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the ride. The passenger slice is never
// shared between copies, so a clone can be mutated without aliasing
// cached state.
func (r *Ride) Clone() Ride {
	c := *r
	c.Passengers = make([]string, len(r.Passengers))
	copy(c.Passengers, r.Passengers)
	return c
}
