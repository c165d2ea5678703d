package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"evride/internal/domain"
)

// CacheStore handles vehicle caching in Redis. Only read paths use it; every
// state change goes to the database and invalidates the entry afterwards.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// VehicleCacheTTL bounds how stale a cached vehicle may be. Status changes
// invalidate explicitly, so this only caps drift from missed invalidations.
const VehicleCacheTTL = 30 * time.Second

const vehicleCachePrefix = "cache:vehicle:"

// cachedVehicle is the JSON form of a cached vehicle.
type cachedVehicle struct {
	ID              string  `json:"id"`
	Number          string  `json:"vehicle_number"`
	Type            string  `json:"type"`
	Brand           string  `json:"brand"`
	Model           string  `json:"model"`
	Battery         float64 `json:"battery"`
	RangeKm         float64 `json:"range_km"`
	Status          string  `json:"status"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	Address         string  `json:"address"`
	CurrentRideID   string  `json:"current_ride_id,omitempty"`
	TotalKmTraveled float64 `json:"total_km_traveled"`
	IsActive        bool    `json:"is_active"`
	UpdatedAt       int64   `json:"updated_at"`
}

func toCached(v *domain.Vehicle) cachedVehicle {
	return cachedVehicle{
		ID:              v.ID,
		Number:          v.Number,
		Type:            string(v.Type),
		Brand:           v.Brand,
		Model:           v.Model,
		Battery:         v.Battery,
		RangeKm:         v.RangeKm,
		Status:          string(v.Status),
		Lat:             v.Location.Lat,
		Lng:             v.Location.Lng,
		Address:         v.Location.Address,
		CurrentRideID:   v.CurrentRideID,
		TotalKmTraveled: v.TotalKmTraveled,
		IsActive:        v.IsActive,
		UpdatedAt:       v.UpdatedAt.UnixMilli(),
	}
}

func (c cachedVehicle) vehicle() *domain.Vehicle {
	return &domain.Vehicle{
		ID:              c.ID,
		Number:          c.Number,
		Type:            domain.VehicleType(c.Type),
		Brand:           c.Brand,
		Model:           c.Model,
		Battery:         c.Battery,
		RangeKm:         c.RangeKm,
		Status:          domain.VehicleStatus(c.Status),
		Location:        domain.Location{Lat: c.Lat, Lng: c.Lng, Address: c.Address},
		CurrentRideID:   c.CurrentRideID,
		TotalKmTraveled: c.TotalKmTraveled,
		IsActive:        c.IsActive,
		UpdatedAt:       time.UnixMilli(c.UpdatedAt).UTC(),
	}
}

// GetVehicle retrieves a vehicle from cache. A miss returns nil, nil.
func (s *CacheStore) GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	data, err := s.client.Get(ctx, vehicleCachePrefix+vehicleID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached cachedVehicle
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.vehicle(), nil
}

// SetVehicle stores a vehicle in cache.
func (s *CacheStore) SetVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	data, err := json.Marshal(toCached(vehicle))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, vehicleCachePrefix+vehicle.ID, data, VehicleCacheTTL).Err()
}

// InvalidateVehicle removes a vehicle from cache.
func (s *CacheStore) InvalidateVehicle(ctx context.Context, vehicleID string) error {
	return s.client.Del(ctx, vehicleCachePrefix+vehicleID).Err()
}

// GetVehiclesBatch retrieves multiple vehicles from cache using a pipeline.
// It returns the hits keyed by ID and the IDs that must be loaded elsewhere.
func (s *CacheStore) GetVehiclesBatch(ctx context.Context, vehicleIDs []string) (map[string]*domain.Vehicle, []string, error) {
	result := make(map[string]*domain.Vehicle, len(vehicleIDs))
	if len(vehicleIDs) == 0 {
		return result, nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(vehicleIDs))
	for i, id := range vehicleIDs {
		cmds[i] = pipe.Get(ctx, vehicleCachePrefix+id)
	}

	// Exec reports redis.Nil when any key is missing; misses are read per command below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}

	var missing []string
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, vehicleIDs[i])
			continue
		}

		var cached cachedVehicle
		if err := json.Unmarshal(data, &cached); err != nil {
			missing = append(missing, vehicleIDs[i])
			continue
		}
		result[vehicleIDs[i]] = cached.vehicle()
	}

	return result, missing, nil
}

// SetVehiclesBatch stores multiple vehicles in cache using a pipeline.
func (s *CacheStore) SetVehiclesBatch(ctx context.Context, vehicles []*domain.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, v := range vehicles {
		data, err := json.Marshal(toCached(v))
		if err != nil {
			continue
		}
		pipe.Set(ctx, vehicleCachePrefix+v.ID, data, VehicleCacheTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}
