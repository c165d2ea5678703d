package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
)

func TestReserve_HoldsVehicle(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)

	res, err := f.reservations.Reserve(f.ctx, "u1", "v1")
	require.NoError(t, err)

	assert.Equal(t, domain.RideStatusReserved, res.Ride.Status)
	assert.Equal(t, f.clock.Now(), res.Ride.ReservedAt)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), res.ExpiresAt)
	assert.Equal(t, domain.PaymentMethodWallet, res.Ride.PaymentMethod)

	v := f.vehicle(t, "v1")
	assert.Equal(t, domain.VehicleStatusReserved, v.Status)
	assert.Equal(t, res.Ride.ID, v.CurrentRideID)

	assert.Equal(t, []NotificationType{NotificationRideReserved}, f.notificationTypes(t))
}

func TestReserve_Errors(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addUser(t, "u2", 100, 0)
	f.addVehicle(t, "v1", 100)
	f.addVehicle(t, "v2", 100)
	f.addVehicle(t, "low", 15)

	require.NoError(t, f.store.Vehicles().Create(f.ctx, &domain.Vehicle{
		ID: "broken", Number: "KA-01-X", Type: domain.VehicleTypeBike, Battery: 90,
		Status: domain.VehicleStatusMaintenance, Location: mgRoad, IsActive: true,
	}))
	require.NoError(t, f.store.Vehicles().Create(f.ctx, &domain.Vehicle{
		ID: "retired", Number: "KA-01-Y", Type: domain.VehicleTypeBike, Battery: 90,
		Status: domain.VehicleStatusAvailable, Location: mgRoad, IsActive: false,
	}))

	_, err := f.reservations.Reserve(f.ctx, "u2", "v2")
	require.NoError(t, err)

	tests := []struct {
		name      string
		userID    string
		vehicleID string
		want      error
	}{
		{"missing ids", "", "v1", ErrValidation},
		{"unknown user", "ghost", "v1", ErrNotFound},
		{"unknown vehicle", "u1", "ghost", ErrNotFound},
		{"vehicle in maintenance", "u1", "broken", ErrInvalidState},
		{"vehicle out of service", "u1", "retired", ErrInvalidState},
		{"vehicle reserved by someone else", "u1", "v2", ErrInvalidState},
		{"battery below minimum", "u1", "low", ErrInsufficientBattery},
		{"user already holds a ride", "u2", "v1", ErrConflictingReservation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reservations.Reserve(f.ctx, tt.userID, tt.vehicleID)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicle(t, "v1").Status)
}

func TestReserve_ReportsBatteryLevel(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "low", 15)

	_, err := f.reservations.Reserve(f.ctx, "u1", "low")

	require.ErrorIs(t, err, ErrInsufficientBattery)
	assert.Contains(t, err.Error(), "15%")
}

func TestReserve_ConcurrentRequestsForOneVehicle(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "v1", 100)
	const riders = 10
	for i := 0; i < riders; i++ {
		f.addUser(t, string(rune('a'+i)), 100, 0)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := f.reservations.Reserve(f.ctx, userID, "v1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			assert.ErrorIs(t, err, ErrInvalidState)
		}(string(rune('a' + i)))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, domain.VehicleStatusReserved, f.vehicle(t, "v1").Status)
}

func TestReserve_VehicleLockHeldElsewhere(t *testing.T) {
	locks := NewMockLockStore()
	f := newFixtureWith(t, func(d *Dependencies) { d.Locks = locks })
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)
	locks.Hold("v1")

	_, err := f.reservations.Reserve(f.ctx, "u1", "v1")

	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "busy")
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicle(t, "v1").Status)
}

func TestReserve_ReleasesVehicleLock(t *testing.T) {
	locks := NewMockLockStore()
	cache := NewMockVehicleCache()
	f := newFixtureWith(t, func(d *Dependencies) {
		d.Locks = locks
		d.Cache = cache
	})
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)

	_, err := f.reservations.Reserve(f.ctx, "u1", "v1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, locks.AcquireCallCount)
	assert.EqualValues(t, 1, locks.ReleaseCallCount)
	assert.EqualValues(t, 1, cache.InvalidateCallCount)

	// The lock is free again for the next request.
	_, ok, err := locks.AcquireVehicleLock(f.ctx, "v1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpire_ReleasesVehicleAfterTimeout(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)

	res, err := f.reservations.Reserve(f.ctx, "u1", "v1")
	require.NoError(t, err)

	f.clock.Advance(4 * time.Minute)
	expired, err := f.reservations.Expire(f.ctx, res.Ride.ID)
	require.NoError(t, err)
	assert.False(t, expired, "reservation is still inside its window")

	f.clock.Advance(time.Minute + time.Second)
	expired, err = f.reservations.Expire(f.ctx, res.Ride.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	ride := f.ride(t, res.Ride.ID)
	assert.Equal(t, domain.RideStatusCancelled, ride.Status)
	assert.Equal(t, CancelReasonExpired, ride.CancelReason)
	assert.Equal(t, f.clock.Now(), ride.EndTime)

	v := f.vehicle(t, "v1")
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	assert.Empty(t, v.CurrentRideID)

	assert.Equal(t, []NotificationType{NotificationRideReserved, NotificationReservationExpired}, f.notificationTypes(t))

	expired, err = f.reservations.Expire(f.ctx, res.Ride.ID)
	require.NoError(t, err)
	assert.False(t, expired, "second expiry must be a no-op")
	assert.Len(t, f.notificationTypes(t), 2)
}

func TestExpire_IgnoresStartedRideAndUnknownRide(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)
	ride := f.startedRide(t, "u1", "v1")

	f.clock.Advance(time.Hour)
	expired, err := f.reservations.Expire(f.ctx, ride.ID)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, domain.RideStatusActive, f.ride(t, ride.ID).Status)

	expired, err = f.reservations.Expire(f.ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestReserve_ExpiresOwnStaleReservation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)
	f.addVehicle(t, "v2", 100)

	first, err := f.reservations.Reserve(f.ctx, "u1", "v1")
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	second, err := f.reservations.Reserve(f.ctx, "u1", "v2")
	require.NoError(t, err)

	assert.Equal(t, domain.RideStatusCancelled, f.ride(t, first.Ride.ID).Status)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicle(t, "v1").Status)
	assert.Equal(t, second.Ride.ID, f.vehicle(t, "v2").CurrentRideID)
	assert.Contains(t, f.notificationTypes(t), NotificationReservationExpired)
}

func TestReserve_StaleReservationFreesVehicleForOthers(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addUser(t, "u2", 100, 0)
	f.addVehicle(t, "v1", 100)

	_, err := f.reservations.Reserve(f.ctx, "u1", "v1")
	require.NoError(t, err)

	f.clock.Advance(4 * time.Minute)
	_, err = f.reservations.Reserve(f.ctx, "u2", "v1")
	assert.ErrorIs(t, err, ErrInvalidState)

	f.clock.Advance(2 * time.Minute)
	second, err := f.reservations.Reserve(f.ctx, "u2", "v1")
	require.NoError(t, err)
	assert.Equal(t, second.Ride.ID, f.vehicle(t, "v1").CurrentRideID)
	assert.Equal(t, 0, f.sweeper.Sweep(f.ctx))
}

func TestSweeper_ExpiresOnlyStaleReservations(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		f.addUser(t, id, 100, 0)
	}
	for _, id := range []string{"v1", "v2", "v3", "v4"} {
		f.addVehicle(t, id, 100)
	}

	_, err := f.reservations.Reserve(f.ctx, "u1", "v1")
	require.NoError(t, err)
	_, err = f.reservations.Reserve(f.ctx, "u2", "v2")
	require.NoError(t, err)
	active := f.startedRide(t, "u4", "v4")

	f.clock.Advance(4 * time.Minute)
	fresh, err := f.reservations.Reserve(f.ctx, "u3", "v3")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, f.sweeper.Sweep(f.ctx))
	assert.Equal(t, 0, f.sweeper.Sweep(f.ctx))

	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicle(t, "v1").Status)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicle(t, "v2").Status)
	assert.Equal(t, domain.RideStatusReserved, f.ride(t, fresh.Ride.ID).Status)
	assert.Equal(t, domain.RideStatusActive, f.ride(t, active.ID).Status)
}
