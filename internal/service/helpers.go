package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"evride/internal/domain"
	"evride/internal/redis"
	"evride/internal/repository"
)

// CancelReasonExpired is recorded on rides cancelled by reservation timeout.
const CancelReasonExpired = "reservation expired"

// Requester identifies who is calling a read operation.
type Requester struct {
	UserID string
	Admin  bool
}

// notFound converts repository.ErrNotFound into a service error naming what was missing.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, "%s not found", what)
	}
	return err
}

// expireIfStale cancels ride when it is a reservation whose window has passed.
// The vehicle is released only while it still points at this ride. It must run
// inside a unit of work with ride read for update.
func expireIfStale(ctx context.Context, r repository.Repositories, ride *domain.Ride, now time.Time, window time.Duration) (bool, error) {
	if !ride.ReservationExpired(now, window) {
		return false, nil
	}

	ride.Status = domain.RideStatusCancelled
	ride.EndTime = now
	ride.CancelReason = CancelReasonExpired
	ride.UpdatedAt = now
	if err := r.Rides().Update(ctx, ride); err != nil {
		return false, err
	}

	if err := releaseVehicle(ctx, r, ride, now); err != nil {
		return false, err
	}
	return true, nil
}

// releaseVehicle frees the ride's vehicle if it is still held by the ride.
func releaseVehicle(ctx context.Context, r repository.Repositories, ride *domain.Ride, now time.Time) error {
	vehicle, err := r.Vehicles().GetByIDForUpdate(ctx, ride.VehicleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if vehicle.CurrentRideID != ride.ID {
		return nil
	}
	vehicle.Release()
	vehicle.UpdatedAt = now
	return r.Vehicles().Update(ctx, vehicle)
}

// openRide returns the user's open ride, locked. A stale reservation is
// expired on the way and returned as expired instead, with open nil.
func openRide(ctx context.Context, r repository.Repositories, userID string, now time.Time, window time.Duration) (open, expired *domain.Ride, err error) {
	found, err := r.Rides().FindOpenByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	ride, err := r.Rides().GetByIDForUpdate(ctx, found.ID)
	if err != nil {
		return nil, nil, err
	}
	if !ride.IsOpen() {
		return nil, nil, nil
	}

	didExpire, err := expireIfStale(ctx, r, ride, now, window)
	if err != nil {
		return nil, nil, err
	}
	if didExpire {
		return nil, ride, nil
	}
	return ride, nil, nil
}

// expireHolder expires the stale reservation, if any, that still holds
// vehicleID. The vehicle is read without a lock so the holding ride can be
// locked ahead of it.
func expireHolder(ctx context.Context, r repository.Repositories, vehicleID string, now time.Time, window time.Duration) (*domain.Ride, error) {
	vehicle, err := r.Vehicles().GetByID(ctx, vehicleID)
	if err != nil || vehicle.Status != domain.VehicleStatusReserved || vehicle.CurrentRideID == "" {
		return nil, nil
	}

	holder, err := r.Rides().GetByIDForUpdate(ctx, vehicle.CurrentRideID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	didExpire, err := expireIfStale(ctx, r, holder, now, window)
	if err != nil || !didExpire {
		return nil, err
	}
	return holder, nil
}

// vehicleLocker takes the cross-instance vehicle lock. With no lock store it
// relies on database row locks alone.
type vehicleLocker struct {
	locks redis.LockStoreInterface
	ttl   time.Duration
	log   zerolog.Logger
}

// acquire returns a release func, or ErrInvalidState when another request holds the vehicle.
func (l vehicleLocker) acquire(ctx context.Context, vehicleID string) (func(), error) {
	if l.locks == nil {
		return func() {}, nil
	}

	token, ok, err := l.locks.AcquireVehicleLock(ctx, vehicleID, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrInvalidState, "vehicle is busy, please retry")
	}

	return func() {
		// The request context may already be cancelled; the lock must still go.
		if err := l.locks.ReleaseVehicleLock(context.WithoutCancel(ctx), vehicleID, token); err != nil {
			l.log.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("release vehicle lock")
		}
	}, nil
}

// vehicleIndex keeps the Redis read models of vehicles in step with the database.
type vehicleIndex struct {
	locations redis.LocationStoreInterface
	cache     redis.VehicleCacheInterface
	log       zerolog.Logger
}

// refresh runs after a commit that changed vehicle. Failures only make the
// read models stale, so they are logged.
func (x vehicleIndex) refresh(ctx context.Context, vehicle *domain.Vehicle) {
	if x.cache != nil {
		if err := x.cache.InvalidateVehicle(ctx, vehicle.ID); err != nil {
			x.log.Warn().Err(err).Str("vehicle_id", vehicle.ID).Msg("invalidate vehicle cache")
		}
	}
	if x.locations == nil {
		return
	}

	var err error
	if vehicle.IsActive {
		err = x.locations.UpdateLocation(ctx, vehicle.ID, vehicle.Location.Lat, vehicle.Location.Lng)
	} else {
		err = x.locations.RemoveLocation(ctx, vehicle.ID)
	}
	if err != nil {
		x.log.Warn().Err(err).Str("vehicle_id", vehicle.ID).Msg("update vehicle geo index")
	}
}

func (x vehicleIndex) invalidate(ctx context.Context, vehicleID string) {
	if x.cache == nil {
		return
	}
	if err := x.cache.InvalidateVehicle(ctx, vehicleID); err != nil {
		x.log.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("invalidate vehicle cache")
	}
}
