package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"evride/internal/domain"
	"evride/internal/repository"
)

// ReservationConfig holds the reservation rules.
type ReservationConfig struct {
	Timeout    time.Duration // how long a reservation holds a vehicle
	MinBattery float64       // minimum battery percentage to reserve
	LockTTL    time.Duration // lifetime of the cross-instance vehicle lock
}

// ReservationService places and expires vehicle reservations.
type ReservationService struct {
	deps   Dependencies
	cfg    ReservationConfig
	locker vehicleLocker
	index  vehicleIndex
	now    func() time.Time
}

// NewReservationService creates a new ReservationService.
func NewReservationService(deps Dependencies, cfg ReservationConfig) *ReservationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	return &ReservationService{
		deps:   deps,
		cfg:    cfg,
		locker: vehicleLocker{locks: deps.Locks, ttl: cfg.LockTTL, log: deps.Log},
		index:  deps.index(),
		now:    deps.clock(),
	}
}

// Timeout returns the reservation window.
func (s *ReservationService) Timeout() time.Duration {
	return s.cfg.Timeout
}

// ReserveResult contains the outcome of a reservation.
type ReserveResult struct {
	Ride      *domain.Ride
	Vehicle   *domain.Vehicle
	ExpiresAt time.Time
}

// Reserve holds an available vehicle for the user until the reservation
// window passes. Stale reservations of the same user or on the same vehicle
// are expired first and do not count as a conflict.
func (s *ReservationService) Reserve(ctx context.Context, userID, vehicleID string) (*ReserveResult, error) {
	if userID == "" || vehicleID == "" {
		return nil, newError(ErrValidation, "user id and vehicle id are required")
	}

	res, expired, err := s.reserve(ctx, userID, vehicleID)
	if err != nil {
		s.deps.Metrics.Reservation(Code(err))
		return nil, err
	}
	s.deps.Metrics.Reservation("ok")
	s.deps.Metrics.RideTransition(string(domain.RideStatusReserved))

	for _, ride := range expired {
		s.afterExpiry(ctx, ride)
	}
	s.index.invalidate(ctx, vehicleID)

	s.deps.Log.Info().
		Str("ride_id", res.Ride.ID).
		Str("user_id", userID).
		Str("vehicle_id", vehicleID).
		Time("expires_at", res.ExpiresAt).
		Msg("vehicle reserved")
	s.deps.notify(func(n *NotificationService) error {
		return n.NotifyRideReserved(ctx, res.Ride, res.Vehicle, res.ExpiresAt)
	})

	return res, nil
}

func (s *ReservationService) reserve(ctx context.Context, userID, vehicleID string) (*ReserveResult, []*domain.Ride, error) {
	release, err := s.locker.acquire(ctx, vehicleID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	now := s.now()
	var (
		result  *ReserveResult
		expired []*domain.Ride
	)

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		result, expired = nil, nil

		if _, err := r.Users().GetByIDForUpdate(ctx, userID); err != nil {
			return notFound(err, "user")
		}

		// Rides are locked before the vehicle.
		open, own, err := openRide(ctx, r, userID, now, s.cfg.Timeout)
		if err != nil {
			return err
		}
		if own != nil {
			expired = append(expired, own)
		}
		holder, err := expireHolder(ctx, r, vehicleID, now, s.cfg.Timeout)
		if err != nil {
			return err
		}
		if holder != nil {
			expired = append(expired, holder)
		}

		vehicle, err := r.Vehicles().GetByIDForUpdate(ctx, vehicleID)
		if err != nil {
			return notFound(err, "vehicle")
		}
		if !vehicle.IsActive {
			return newError(ErrInvalidState, "vehicle is not in service")
		}
		if vehicle.Status != domain.VehicleStatusAvailable {
			return newError(ErrInvalidState, "vehicle is currently %s", vehicle.Status)
		}
		if vehicle.Battery < s.cfg.MinBattery {
			return newError(ErrInsufficientBattery,
				"vehicle battery too low (%.0f%%), minimum %.0f%% required", vehicle.Battery, s.cfg.MinBattery)
		}
		if open != nil {
			return newError(ErrConflictingReservation, "you already have a %s ride", open.Status)
		}

		ride := &domain.Ride{
			ID:            uuid.New().String(),
			UserID:        userID,
			VehicleID:     vehicleID,
			Status:        domain.RideStatusReserved,
			ReservedAt:    now,
			PaymentMethod: domain.PaymentMethodWallet,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Rides().Create(ctx, ride); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return newError(ErrConflictingReservation, "you already have an open ride")
			}
			return err
		}

		vehicle.Status = domain.VehicleStatusReserved
		vehicle.CurrentRideID = ride.ID
		vehicle.UpdatedAt = now
		if err := r.Vehicles().Update(ctx, vehicle); err != nil {
			return err
		}

		result = &ReserveResult{Ride: ride, Vehicle: vehicle, ExpiresAt: now.Add(s.cfg.Timeout)}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, expired, nil
}

// Expire cancels the ride if it is still a reservation whose window has
// passed, and reports whether it did. Calling it again, or on a ride that was
// started or cancelled meanwhile, does nothing. Only storage errors are returned.
func (s *ReservationService) Expire(ctx context.Context, rideID string) (bool, error) {
	now := s.now()

	ride, err := s.deps.Store.Rides().GetByID(ctx, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !ride.ReservationExpired(now, s.cfg.Timeout) {
		return false, nil
	}

	var expired bool
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		if _, err := r.Users().GetByIDForUpdate(ctx, ride.UserID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		locked, err := r.Rides().GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return err
		}
		expired, err = expireIfStale(ctx, r, locked, now, s.cfg.Timeout)
		if err != nil {
			return err
		}
		ride = locked
		return nil
	})
	if err != nil {
		return false, err
	}

	if expired {
		s.afterExpiry(ctx, ride)
	}
	return expired, nil
}

// expireForUser lazily expires the user's stale reservation, if any.
func (s *ReservationService) expireForUser(ctx context.Context, userID string) error {
	open, err := s.deps.Store.Rides().FindOpenByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.Expire(ctx, open.ID)
	return err
}

func (s *ReservationService) afterExpiry(ctx context.Context, ride *domain.Ride) {
	s.deps.Metrics.ReservationExpired()
	s.deps.Metrics.RideTransition(string(domain.RideStatusCancelled))
	s.index.invalidate(ctx, ride.VehicleID)

	s.deps.Log.Info().
		Str("ride_id", ride.ID).
		Str("user_id", ride.UserID).
		Str("vehicle_id", ride.VehicleID).
		Msg("reservation expired")
	s.deps.notify(func(n *NotificationService) error {
		return n.NotifyReservationExpired(ctx, ride)
	})
}
