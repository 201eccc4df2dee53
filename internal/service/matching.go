package service

import (
	"math"

	"carpool/internal/cache"
	"carpool/internal/domain"
)

// matchThresholdDegrees is the route-matching distance threshold,
// expressed in degrees of lat/lng (about 1.1 km at the target latitude
// band). This is a planar approximation, not a geodesic distance; it
// degrades at high latitudes and is kept deliberately, matching the
// behavior the product was built around.
const matchThresholdDegrees = 0.01

// MatchQuery describes a candidate route to match open rides against.
type MatchQuery struct {
	Origin      domain.Location
	Destination domain.Location
}

// MatchSet is the unfiltered result of a matching scan. The vehicle
// filter is applied afterwards as a purely client-side narrowing, so both
// the "all matches" and "matches for vehicle X" counts are available
// without re-querying.
type MatchSet struct {
	All []domain.Ride
}

// ForVehicle narrows the set to rides of one vehicle category.
func (m MatchSet) ForVehicle(v domain.Vehicle) []domain.Ride {
	var out []domain.Ride
	for _, r := range m.All {
		if r.Vehicle == v {
			out = append(out, r)
		}
	}
	return out
}

// MatchingService finds open rides compatible with a candidate route by
// scanning the local ride cache. Match quality is therefore bounded by
// cache freshness. The scan is synchronous and never fails; an empty set
// is the only miss mode.
type MatchingService struct {
	cache *cache.Store
}

// NewMatchingService creates a MatchingService over the local cache.
func NewMatchingService(store *cache.Store) *MatchingService {
	return &MatchingService{cache: store}
}

// FindMatches returns every open cached ride whose origin and destination
// both lie within the distance threshold of the query's endpoints.
// Results follow cache iteration order; no ordering is guaranteed.
func (s *MatchingService) FindMatches(q MatchQuery) MatchSet {
	var set MatchSet
	for _, ride := range s.cache.Rides() {
		if ride.Status != domain.RideStatusOpen {
			continue
		}
		if !withinThreshold(q.Origin, ride.Origin) {
			continue
		}
		if !withinThreshold(q.Destination, ride.Destination) {
			continue
		}
		set.All = append(set.All, ride)
	}
	return set
}

// withinThreshold tests straight-line planar distance in degree space.
func withinThreshold(a, b domain.Location) bool {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng) <= matchThresholdDegrees
}
