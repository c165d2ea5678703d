package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"evride/internal/auth"
	"evride/internal/domain"
	"evride/internal/middleware"
	"evride/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// LocationResponse is a point on the map.
type LocationResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unexpected errors are attached to the context for the request logger and
// answered with a generic message.
func respondError(c *gin.Context, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: "INTERNAL"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: service.Code(err)})
}

// respondBadRequest answers malformed input.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "VALIDATION_ERROR"})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientBattery):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrConflictingReservation),
		errors.Is(err, service.ErrAlreadyRated):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// currentIdentity returns the authenticated caller, answering 401 when there is none.
func currentIdentity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "UNAUTHORIZED"})
	}
	return identity, ok
}

func requester(identity auth.Identity) service.Requester {
	return service.Requester{UserID: identity.UserID, Admin: identity.IsAdmin()}
}

func toLocationResponse(l *domain.Location) *LocationResponse {
	if l == nil {
		return nil
	}
	return &LocationResponse{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondBadRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// queryFloat parses a query parameter as a finite float. A missing parameter
// yields def, or a 400 when required is set.
func queryFloat(c *gin.Context, name string, def float64, required bool) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			respondBadRequest(c, name+" is required")
			return 0, false
		}
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		respondBadRequest(c, name+" must be a number")
		return 0, false
	}
	return v, true
}
