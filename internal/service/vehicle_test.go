package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
	"evride/internal/repository"
)

func TestVehicleCreate(t *testing.T) {
	f := newFixture(t)

	v, err := f.vehicles.Create(f.ctx, CreateVehicleRequest{
		Number: " ka-05-ev-1 ", Type: domain.VehicleTypeEV, Brand: "Ather", Model: "450X", Battery: 80, Location: mgRoad,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "KA-05-EV-1", v.Number)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	assert.Equal(t, 50.0, v.RangeKm)
	assert.True(t, v.IsActive)

	stored := f.vehicle(t, v.ID)
	assert.Equal(t, v.Number, stored.Number)

	tests := []struct {
		name string
		req  CreateVehicleRequest
	}{
		{"missing number", CreateVehicleRequest{Type: domain.VehicleTypeBike, Battery: 50, Location: mgRoad}},
		{"unknown type", CreateVehicleRequest{Number: "X", Type: "truck", Battery: 50, Location: mgRoad}},
		{"battery above 100", CreateVehicleRequest{Number: "X", Type: domain.VehicleTypeBike, Battery: 101, Location: mgRoad}},
		{"invalid location", CreateVehicleRequest{Number: "X", Type: domain.VehicleTypeBike, Battery: 50, Location: domain.Location{Lat: -91}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.vehicles.Create(f.ctx, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestVehicleGet_UsesCache(t *testing.T) {
	cache := NewMockVehicleCache()
	f := newFixtureWith(t, func(d *Dependencies) { d.Cache = cache })
	f.addVehicle(t, "v1", 100)

	v, err := f.vehicles.Get(f.ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, 1, cache.Len())

	cached, err := cache.GetVehicle(f.ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, domain.VehicleStatusAvailable, cached.Status)

	_, err = f.vehicles.Get(f.ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVehicleGet_SkipsCacheWhileLocked(t *testing.T) {
	cache := NewMockVehicleCache()
	locks := NewMockLockStore()
	f := newFixtureWith(t, func(d *Dependencies) {
		d.Cache = cache
		d.Locks = locks
	})
	f.addVehicle(t, "v1", 100)
	locks.Hold("v1")

	v, err := f.vehicles.Get(f.ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, 0, cache.Len())

	locks.Release("v1")
	_, err = f.vehicles.Get(f.ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func addVehicleAt(t *testing.T, f *fixture, id string, battery float64, status domain.VehicleStatus, loc domain.Location) {
	t.Helper()
	require.NoError(t, f.store.Vehicles().Create(f.ctx, &domain.Vehicle{
		ID: id, Number: "KA-" + id, Type: domain.VehicleTypeScooter, Battery: battery,
		Status: status, Location: loc, IsActive: true,
	}))
}

func TestVehicleNearby_FromDatabase(t *testing.T) {
	f := newFixture(t)
	addVehicleAt(t, f, "close", 90, domain.VehicleStatusAvailable, mgRoad)
	addVehicleAt(t, f, "one-km", 90, domain.VehicleStatusReserved, oneKmOut)
	addVehicleAt(t, f, "far", 90, domain.VehicleStatusAvailable, domain.Location{Lat: 13.1, Lng: 77.5946})
	addVehicleAt(t, f, "flat", 10, domain.VehicleStatusAvailable, mgRoad)
	addVehicleAt(t, f, "busy", 90, domain.VehicleStatusInUse, mgRoad)

	nearby, err := f.vehicles.Nearby(f.ctx, NearbyQuery{Lat: mgRoad.Lat, Lng: mgRoad.Lng})
	require.NoError(t, err)

	require.Len(t, nearby, 2)
	assert.Equal(t, "close", nearby[0].Vehicle.ID)
	assert.Equal(t, 0.0, nearby[0].DistanceKm)
	assert.Equal(t, "one-km", nearby[1].Vehicle.ID)
	assert.Equal(t, 1.0, nearby[1].DistanceKm)

	wide, err := f.vehicles.Nearby(f.ctx, NearbyQuery{Lat: mgRoad.Lat, Lng: mgRoad.Lng, RadiusKm: 50})
	require.NoError(t, err)
	assert.Len(t, wide, 3)
}

func TestVehicleNearby_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.vehicles.Nearby(f.ctx, NearbyQuery{Lat: 100, Lng: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.vehicles.Nearby(f.ctx, NearbyQuery{Lat: 12, Lng: 77, RadiusKm: 51})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVehicleNearby_FromGeoIndex(t *testing.T) {
	locations := NewMockLocationStore()
	cache := NewMockVehicleCache()
	f := newFixtureWith(t, func(d *Dependencies) {
		d.Locations = locations
		d.Cache = cache
	})
	f.addUser(t, "u1", 100, 0)

	near, err := f.vehicles.Create(f.ctx, CreateVehicleRequest{Number: "KA-1", Type: domain.VehicleTypeBike, Battery: 90, Location: oneKmOut})
	require.NoError(t, err)
	closest, err := f.vehicles.Create(f.ctx, CreateVehicleRequest{Number: "KA-2", Type: domain.VehicleTypeBike, Battery: 90, Location: mgRoad})
	require.NoError(t, err)
	_, err = f.vehicles.Create(f.ctx, CreateVehicleRequest{Number: "KA-3", Type: domain.VehicleTypeBike, Battery: 5, Location: mgRoad})
	require.NoError(t, err)
	assert.True(t, locations.Has(near.ID))

	nearby, err := f.vehicles.Nearby(f.ctx, NearbyQuery{Lat: mgRoad.Lat, Lng: mgRoad.Lng})
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	assert.Equal(t, closest.ID, nearby[0].Vehicle.ID)
	assert.Equal(t, near.ID, nearby[1].Vehicle.ID)
	assert.Equal(t, 3, cache.Len(), "index hits are cached")

	// A ride moves the vehicle and the index follows it.
	ride, err := f.rides.Start(f.ctx, StartRideRequest{UserID: "u1", VehicleID: closest.ID, Location: mgRoad})
	require.NoError(t, err)
	_, err = f.rides.End(f.ctx, EndRideRequest{
		RideID: ride.Ride.ID, UserID: "u1", Location: domain.Location{Lat: 13.1, Lng: 77.5946},
	})
	require.NoError(t, err)

	nearby, err = f.vehicles.Nearby(f.ctx, NearbyQuery{Lat: mgRoad.Lat, Lng: mgRoad.Lng})
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, near.ID, nearby[0].Vehicle.ID)
}

func TestVehicleList_ValidatesFilter(t *testing.T) {
	f := newFixture(t)
	addVehicleAt(t, f, "a", 90, domain.VehicleStatusAvailable, mgRoad)
	addVehicleAt(t, f, "b", 90, domain.VehicleStatusCharging, mgRoad)

	list, err := f.vehicles.List(f.ctx, repository.VehicleFilter{Statuses: []domain.VehicleStatus{domain.VehicleStatusCharging}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	_, err = f.vehicles.List(f.ctx, repository.VehicleFilter{Statuses: []domain.VehicleStatus{"flying"}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.vehicles.List(f.ctx, repository.VehicleFilter{Type: "truck"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVehicleEstimates(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "v1", 100)

	est, err := f.vehicles.EstimateTrip(mgRoad, oneKmOut)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.DistanceKm)
	assert.Equal(t, 3, est.EstimatedDurationMinutes)
	assert.Equal(t, 21.0, est.EstimatedTotal)

	forVehicle, err := f.vehicles.EstimateForVehicle(f.ctx, "v1", mgRoad, oneKmOut)
	require.NoError(t, err)
	assert.Equal(t, est, forVehicle)

	_, err = f.vehicles.EstimateForVehicle(f.ctx, "ghost", mgRoad, oneKmOut)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.vehicles.EstimateTrip(mgRoad, domain.Location{Lat: 95})
	assert.ErrorIs(t, err, ErrValidation)

	byDistance, err := f.vehicles.EstimateDistance(1)
	require.NoError(t, err)
	assert.Equal(t, est, byDistance)

	for _, distance := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1), 1e308, maxEstimateDistanceKm + 0.01} {
		_, err = f.vehicles.EstimateDistance(distance)
		assert.ErrorIs(t, err, ErrValidation, "distance %v", distance)
	}

	longest, err := f.vehicles.EstimateDistance(maxEstimateDistanceKm)
	require.NoError(t, err)
	assert.Equal(t, float64(maxEstimateDistanceKm), longest.DistanceKm)
}
