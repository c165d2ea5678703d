package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a ride, vehicle or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the requester does not own the ride.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when an operation does not apply to the current ride or vehicle status.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned when request input is malformed or out of range.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBattery is returned when a vehicle is below the reservable battery level.
	ErrInsufficientBattery = errors.New("insufficient battery")

	// ErrInsufficientFunds is returned when the wallet cannot cover the fare after redemption.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflictingReservation is returned when the user already holds an open ride.
	ErrConflictingReservation = errors.New("conflicting reservation")

	// ErrAlreadyRated is returned when a completed ride already carries a rating.
	ErrAlreadyRated = errors.New("already rated")
)

// Error carries a user facing message for one of the sentinel errors above.
// errors.Is matches it against its sentinel.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// codes maps each sentinel to the machine readable code used in API responses and metrics.
var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrInsufficientBattery, "INSUFFICIENT_BATTERY"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrConflictingReservation, "CONFLICTING_RESERVATION"},
	{ErrAlreadyRated, "ALREADY_RATED"},
}

// Code returns the code of a service error, or "INTERNAL" for anything else.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
