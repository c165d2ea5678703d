package repository

import (
	"context"
	"time"

	"evride/internal/domain"
)

// RideFilter narrows a ride history listing.
type RideFilter struct {
	Status domain.RideStatus // empty matches every status
	Limit  int
	Offset int
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride and locks it until the surrounding
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// FindOpenByUser returns the user's reserved or active ride, or ErrNotFound.
	FindOpenByUser(ctx context.Context, userID string) (*domain.Ride, error)

	// ListByUser returns a page of the user's rides, newest first, and the
	// total number of rides matching the filter.
	ListByUser(ctx context.Context, userID string, filter RideFilter) ([]*domain.Ride, int, error)

	// ListExpiredReservations returns rides still reserved at or before the cutoff.
	ListExpiredReservations(ctx context.Context, reservedBefore time.Time, limit int) ([]*domain.Ride, error)

	// Update updates an existing ride.
	Update(ctx context.Context, ride *domain.Ride) error
}
