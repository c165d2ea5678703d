package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"evride/internal/domain"
	"evride/internal/fare"
	"evride/internal/redis"
)

// MockLockStore is an in-process LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]string
	token int64

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]string)}
}

// Hold marks vehicleID as locked by someone else.
func (m *MockLockStore) Hold(vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[vehicleID] = "other"
}

func (m *MockLockStore) AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[vehicleID]; ok {
		return "", false, nil
	}
	m.token++
	token := time.Unix(m.token, 0).String()
	m.held[vehicleID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseVehicleLock(ctx context.Context, vehicleID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[vehicleID] == token {
		delete(m.held, vehicleID)
	}
	return nil
}

func (m *MockLockStore) IsVehicleLocked(ctx context.Context, vehicleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[vehicleID]
	return ok, nil
}

// Release drops a lock set by Hold.
func (m *MockLockStore) Release(vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, vehicleID)
}

// MockLocationStore is an in-process LocationStoreInterface that searches by
// haversine distance.
type MockLocationStore struct {
	mu        sync.Mutex
	locations map[string]domain.Location
}

func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]domain.Location)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[vehicleID] = domain.Location{Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyVehicles(ctx context.Context, lat, lng, radiusKm float64) ([]redis.VehicleLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	origin := domain.Location{Lat: lat, Lng: lng}
	var out []redis.VehicleLocation
	for id, loc := range m.locations {
		d := fare.DistanceKm(origin, loc)
		if d <= radiusKm {
			out = append(out, redis.VehicleLocation{VehicleID: id, Lat: loc.Lat, Lng: loc.Lng, DistanceKm: d})
		}
	}
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, vehicleID)
	return nil
}

func (m *MockLocationStore) Has(vehicleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locations[vehicleID]
	return ok
}

// MockVehicleCache is an in-process VehicleCacheInterface.
type MockVehicleCache struct {
	mu       sync.Mutex
	vehicles map[string]domain.Vehicle

	InvalidateCallCount int32
}

func NewMockVehicleCache() *MockVehicleCache {
	return &MockVehicleCache{vehicles: make(map[string]domain.Vehicle)}
}

func (m *MockVehicleCache) GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MockVehicleCache) SetVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (m *MockVehicleCache) InvalidateVehicle(ctx context.Context, vehicleID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, vehicleID)
	return nil
}

func (m *MockVehicleCache) GetVehiclesBatch(ctx context.Context, vehicleIDs []string) (map[string]*domain.Vehicle, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := make(map[string]*domain.Vehicle)
	var missing []string
	for _, id := range vehicleIDs {
		if v, ok := m.vehicles[id]; ok {
			found[id] = &v
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

func (m *MockVehicleCache) SetVehiclesBatch(ctx context.Context, vehicles []*domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vehicles {
		m.vehicles[v.ID] = *v
	}
	return nil
}

func (m *MockVehicleCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vehicles)
}

var (
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ redis.VehicleCacheInterface  = (*MockVehicleCache)(nil)
)
