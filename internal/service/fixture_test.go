package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
	"evride/internal/events"
	"evride/internal/fare"
	"evride/internal/repository/memory"
)

var (
	mgRoad   = domain.Location{Lat: 12.9716, Lng: 77.5946, Address: "MG Road"}
	oneKmOut = domain.Location{Lat: 12.9806, Lng: 77.5946, Address: "Cubbon Park"}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx           context.Context
	store         *memory.Store
	clock         *fakeClock
	events        *events.Recorder
	notifications *NotificationService
	reservations  *ReservationService
	rides         *RideService
	wallet        *WalletService
	users         *UserService
	vehicles      *VehicleService
	sweeper       *ReservationSweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test plug Redis stand-ins into the dependencies.
func newFixtureWith(t *testing.T, configure func(*Dependencies)) *fixture {
	t.Helper()

	store := memory.NewStore()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	recorder := &events.Recorder{}
	notifications := NewNotificationService(recorder, zerolog.Nop())
	t.Cleanup(notifications.Close)

	deps := Dependencies{
		Store:         store,
		Notifications: notifications,
		Log:           zerolog.Nop(),
		Clock:         clock.Now,
	}
	if configure != nil {
		configure(&deps)
	}
	reservations := NewReservationService(deps, ReservationConfig{Timeout: 5 * time.Minute, MinBattery: 20})

	return &fixture{
		ctx:           context.Background(),
		store:         store,
		clock:         clock,
		events:        recorder,
		notifications: notifications,
		reservations:  reservations,
		rides:         NewRideService(deps, fare.DefaultConfig(), NewLedger(0.10), reservations, NewReceiptService()),
		wallet:        NewWalletService(deps, NewMockPSP(), 10000),
		users:         NewUserService(deps),
		vehicles:      NewVehicleService(deps, fare.DefaultConfig(), 20),
		sweeper:       NewReservationSweeper(reservations, time.Second, zerolog.Nop()),
	}
}

func (f *fixture) addUser(t *testing.T, id string, balance float64, points int) {
	t.Helper()
	require.NoError(t, f.store.Users().Create(f.ctx, &domain.User{
		ID:            id,
		Name:          "Rider " + id,
		Role:          domain.UserRoleUser,
		WalletBalance: balance,
		RewardPoints:  points,
		CreatedAt:     f.clock.Now(),
	}))
}

func (f *fixture) addVehicle(t *testing.T, id string, battery float64) {
	t.Helper()
	require.NoError(t, f.store.Vehicles().Create(f.ctx, &domain.Vehicle{
		ID:       id,
		Number:   "KA-01-" + id,
		Type:     domain.VehicleTypeScooter,
		Battery:  battery,
		RangeKm:  50,
		Status:   domain.VehicleStatusAvailable,
		Location: mgRoad,
		IsActive: true,
	}))
}

func (f *fixture) vehicle(t *testing.T, id string) *domain.Vehicle {
	t.Helper()
	v, err := f.store.Vehicles().GetByID(f.ctx, id)
	require.NoError(t, err)
	return v
}

func (f *fixture) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := f.store.Users().GetByID(f.ctx, id)
	require.NoError(t, err)
	return u
}

func (f *fixture) ride(t *testing.T, id string) *domain.Ride {
	t.Helper()
	r, err := f.store.Rides().GetByID(f.ctx, id)
	require.NoError(t, err)
	return r
}

// startedRide reserves vehicleID for userID and starts it at mgRoad.
func (f *fixture) startedRide(t *testing.T, userID, vehicleID string) *domain.Ride {
	t.Helper()
	_, err := f.reservations.Reserve(f.ctx, userID, vehicleID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	res, err := f.rides.Start(f.ctx, StartRideRequest{UserID: userID, VehicleID: vehicleID, Location: mgRoad})
	require.NoError(t, err)
	return res.Ride
}

func (f *fixture) notificationTypes(t *testing.T) []NotificationType {
	t.Helper()
	f.notifications.Wait()
	var types []NotificationType
	for _, m := range f.events.Messages() {
		var n Notification
		require.NoError(t, json.Unmarshal(m.Value, &n))
		types = append(types, n.Type)
	}
	return types
}
