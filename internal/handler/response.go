package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/repository"
	"carpool/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusBadGateway {
		// Transport errors are not the caller's fault and carry no
		// user-meaningful message; the UI should prompt a retry.
		c.JSON(code, ErrorResponse{Error: "temporary failure, please retry"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrRideNotCached):
		return http.StatusNotFound

	// Input validation - Bad Request
	case errors.Is(err, service.ErrInvalidSeatCount),
		errors.Is(err, service.ErrInvalidOrigin),
		errors.Is(err, service.ErrInvalidDestination),
		errors.Is(err, service.ErrInvalidVehicle),
		errors.Is(err, service.ErrPhoneRequired):
		return http.StatusBadRequest

	// State machine rejections - the action is no longer possible
	case errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrRideNotOpen),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict

	// Business rule errors
	case errors.Is(err, service.ErrNotCreator),
		errors.Is(err, service.ErrNotAMember):
		return http.StatusForbidden

	// Anything else is a transport failure talking to the gateway.
	default:
		return http.StatusBadGateway
	}
}
