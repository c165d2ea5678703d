package repository

import (
	"context"

	"evride/internal/domain"
)

// VehicleFilter narrows a vehicle listing. Zero values match everything.
type VehicleFilter struct {
	Statuses   []domain.VehicleStatus
	Type       domain.VehicleType
	MinBattery float64
	ActiveOnly bool
}

// VehicleRepository defines the persistence operations for vehicles.
type VehicleRepository interface {
	// Create persists a new vehicle.
	Create(ctx context.Context, vehicle *domain.Vehicle) error

	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// GetByIDForUpdate retrieves a vehicle and locks it until the surrounding
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Vehicle, error)

	// GetByIDs retrieves the vehicles that exist among ids.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Vehicle, error)

	// List retrieves vehicles matching the filter.
	List(ctx context.Context, filter VehicleFilter) ([]*domain.Vehicle, error)

	// Update updates an existing vehicle.
	Update(ctx context.Context, vehicle *domain.Vehicle) error
}
