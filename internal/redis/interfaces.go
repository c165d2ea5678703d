package redis

import (
	"context"
	"time"

	"evride/internal/domain"
)

// LocationStoreInterface defines the interface for vehicle location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) error
	FindNearbyVehicles(ctx context.Context, lat, lng, radiusKm float64) ([]VehicleLocation, error)
	RemoveLocation(ctx context.Context, vehicleID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (string, bool, error)
	ReleaseVehicleLock(ctx context.Context, vehicleID, token string) error
	IsVehicleLocked(ctx context.Context, vehicleID string) (bool, error)
}

// VehicleCacheInterface defines the interface for the vehicle read cache.
type VehicleCacheInterface interface {
	GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
	SetVehicle(ctx context.Context, vehicle *domain.Vehicle) error
	InvalidateVehicle(ctx context.Context, vehicleID string) error
	GetVehiclesBatch(ctx context.Context, vehicleIDs []string) (map[string]*domain.Vehicle, []string, error)
	SetVehiclesBatch(ctx context.Context, vehicles []*domain.Vehicle) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ VehicleCacheInterface  = (*CacheStore)(nil)
)
