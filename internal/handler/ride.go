package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/service"
)

// actorHeader carries the caller's identity. Session management itself is
// an external concern; the handlers only require that some identity is
// present on mutating routes.
const actorHeader = "X-User-ID"

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rides *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rides *service.RideService) *RideHandler {
	return &RideHandler{rides: rides}
}

// LocationPayload is the wire shape of a coordinate pair plus address.
type LocationPayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	Origin      LocationPayload `json:"origin"`
	Destination LocationPayload `json:"destination"`
	TotalSeats  int             `json:"total_seats"`
	Vehicle     string          `json:"vehicle"`
	Phone       string          `json:"phone"`
}

// JoinRideRequest is the HTTP request body for joining a ride.
type JoinRideRequest struct {
	Phone string `json:"phone"`
}

// RideResponse is the HTTP response shape for a ride.
type RideResponse struct {
	ID             string          `json:"id"`
	CreatorID      string          `json:"creator_id"`
	Origin         LocationPayload `json:"origin"`
	Destination    LocationPayload `json:"destination"`
	TotalSeats     int             `json:"total_seats"`
	SeatsAvailable int             `json:"seats_available"`
	Status         string          `json:"status"`
	Vehicle        string          `json:"vehicle"`
	Passengers     []string        `json:"passengers"`
	CreatedAt      string          `json:"created_at"`
}

func toRideResponse(r domain.Ride) RideResponse {
	return RideResponse{
		ID:        r.ID,
		CreatorID: r.CreatorID,
		Origin: LocationPayload{
			Lat: r.Origin.Lat, Lng: r.Origin.Lng, Address: r.Origin.Address,
		},
		Destination: LocationPayload{
			Lat: r.Destination.Lat, Lng: r.Destination.Lng, Address: r.Destination.Address,
		},
		TotalSeats:     r.TotalSeats,
		SeatsAvailable: r.SeatsAvailable,
		Status:         string(r.Status),
		Vehicle:        string(r.Vehicle),
		Passengers:     r.Passengers,
		CreatedAt:      r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rides.CreateRide(c.Request.Context(), service.CreateRideRequest{
		ActorID: c.GetHeader(actorHeader),
		Origin: domain.Location{
			Lat: req.Origin.Lat, Lng: req.Origin.Lng, Address: req.Origin.Address,
		},
		Destination: domain.Location{
			Lat: req.Destination.Lat, Lng: req.Destination.Lng, Address: req.Destination.Address,
		},
		TotalSeats: req.TotalSeats,
		Vehicle:    domain.Vehicle(req.Vehicle),
		Phone:      req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(*ride))
}

// GetAll handles GET /v1/rides — the read-only view of the local cache.
func (h *RideHandler) GetAll(c *gin.Context) {
	rides := h.rides.Rides()

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, ok := h.rides.GetRide(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ride not found"})
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// JoinRide handles POST /v1/rides/:id/join
func (h *RideHandler) JoinRide(c *gin.Context) {
	var req JoinRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.rides.JoinRide(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader), req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}

	ride, _ := h.rides.GetRide(c.Param("id"))
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// LeaveRide handles POST /v1/rides/:id/leave. For the ride creator this
// cancels the whole ride.
func (h *RideHandler) LeaveRide(c *gin.Context) {
	err := h.rides.LeaveOrCancelRide(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	ride, ok := h.rides.GetRide(c.Param("id"))
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	err := h.rides.CompleteRide(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	ride, _ := h.rides.GetRide(c.Param("id"))
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// MatchResponse is the HTTP response for a matching query. Matches carries
// the unfiltered set; Filtered is present only when a vehicle filter was
// given, so a client can show both counts from one query.
type MatchResponse struct {
	Matches  []RideResponse `json:"matches"`
	Filtered []RideResponse `json:"filtered,omitempty"`
}

// FindMatches handles GET /v1/matches
func (h *RideHandler) FindMatches(c *gin.Context) {
	q, err := parseMatchQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	set := h.rides.FindMatches(q)

	response := MatchResponse{Matches: make([]RideResponse, 0, len(set.All))}
	for _, r := range set.All {
		response.Matches = append(response.Matches, toRideResponse(r))
	}

	if v := c.Query("vehicle"); v != "" {
		vehicle := domain.Vehicle(v)
		if !vehicle.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vehicle category"})
			return
		}
		filtered := set.ForVehicle(vehicle)
		response.Filtered = make([]RideResponse, 0, len(filtered))
		for _, r := range filtered {
			response.Filtered = append(response.Filtered, toRideResponse(r))
		}
	}

	respondJSON(c, http.StatusOK, response)
}

// WatchRide handles POST /v1/rides/:id/watch. An open detail view
// registers a watch, tightening the background poll while it stays open.
func (h *RideHandler) WatchRide(c *gin.Context) {
	h.rides.Watch(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// UnwatchRide handles POST /v1/rides/:id/unwatch.
func (h *RideHandler) UnwatchRide(c *gin.Context) {
	h.rides.Unwatch(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// SyncAll handles POST /v1/sync — the user-initiated full refresh.
func (h *RideHandler) SyncAll(c *gin.Context) {
	if err := h.rides.ReconcileAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncRide handles POST /v1/rides/:id/sync — a single-record refresh.
func (h *RideHandler) SyncRide(c *gin.Context) {
	if err := h.rides.ReconcileOne(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseMatchQuery(c *gin.Context) (service.MatchQuery, error) {
	var q service.MatchQuery
	var err error

	parse := func(name string) (float64, error) {
		raw := c.Query(name)
		if raw == "" {
			return 0, errMissingParam(name)
		}
		return strconv.ParseFloat(raw, 64)
	}

	if q.Origin.Lat, err = parse("origin_lat"); err != nil {
		return q, err
	}
	if q.Origin.Lng, err = parse("origin_lng"); err != nil {
		return q, err
	}
	if q.Destination.Lat, err = parse("destination_lat"); err != nil {
		return q, err
	}
	if q.Destination.Lng, err = parse("destination_lng"); err != nil {
		return q, err
	}
	return q, nil
}

type errMissingParam string

func (e errMissingParam) Error() string { return "missing query parameter: " + string(e) }
