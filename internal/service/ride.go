package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"evride/internal/domain"
	"evride/internal/fare"
	"evride/internal/repository"
)

const (
	defaultStartAddress = "Current Location"
	defaultEndAddress   = "Not provided"

	// CancelReasonUser is recorded on rides cancelled by their rider.
	CancelReasonUser = "cancelled by user"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// RideService drives a ride through start, end, cancellation and rating.
type RideService struct {
	deps         Dependencies
	pricing      fare.Config
	ledger       *Ledger
	reservations *ReservationService
	receipts     *ReceiptService
	locker       vehicleLocker
	index        vehicleIndex
	now          func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(
	deps Dependencies,
	pricing fare.Config,
	ledger *Ledger,
	reservations *ReservationService,
	receipts *ReceiptService,
) *RideService {
	return &RideService{
		deps:         deps,
		pricing:      pricing,
		ledger:       ledger,
		reservations: reservations,
		receipts:     receipts,
		locker:       reservations.locker,
		index:        deps.index(),
		now:          deps.clock(),
	}
}

// StartRideRequest contains the parameters for starting a ride.
type StartRideRequest struct {
	UserID    string
	VehicleID string
	Location  domain.Location
}

// StartRideResult contains the started ride and its vehicle.
type StartRideResult struct {
	Ride    *domain.Ride
	Vehicle *domain.Vehicle
}

// Start begins a ride. The user's reservation of the same vehicle is promoted
// in place; without one, a new active ride is created on an available vehicle.
func (s *RideService) Start(ctx context.Context, req StartRideRequest) (*StartRideResult, error) {
	if req.UserID == "" || req.VehicleID == "" {
		return nil, newError(ErrValidation, "user id and vehicle id are required")
	}
	if !req.Location.Valid() {
		return nil, newError(ErrValidation, "invalid start location")
	}
	if req.Location.Address == "" {
		req.Location.Address = defaultStartAddress
	}

	release, err := s.locker.acquire(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	var (
		result  *StartRideResult
		expired []*domain.Ride
	)

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		result, expired = nil, nil

		if _, err := r.Users().GetByIDForUpdate(ctx, req.UserID); err != nil {
			return notFound(err, "user")
		}

		open, own, err := openRide(ctx, r, req.UserID, now, s.reservations.Timeout())
		if err != nil {
			return err
		}
		if own != nil {
			expired = append(expired, own)
		}
		if open == nil {
			holder, err := expireHolder(ctx, r, req.VehicleID, now, s.reservations.Timeout())
			if err != nil {
				return err
			}
			if holder != nil {
				expired = append(expired, holder)
			}
		}

		vehicle, err := r.Vehicles().GetByIDForUpdate(ctx, req.VehicleID)
		if err != nil {
			return notFound(err, "vehicle")
		}
		if !vehicle.IsActive {
			return newError(ErrInvalidState, "vehicle is not in service")
		}

		ride := open
		switch {
		case open != nil && open.VehicleID == req.VehicleID && domain.CanTransition(open.Status, domain.RideStatusActive):
			if vehicle.CurrentRideID != open.ID && vehicle.Status != domain.VehicleStatusAvailable {
				return newError(ErrInvalidState, "vehicle is currently %s", vehicle.Status)
			}
		case open != nil:
			return newError(ErrInvalidState, "you already have a %s ride", open.Status)
		default:
			if vehicle.Status == domain.VehicleStatusReserved {
				return newError(ErrInvalidState, "vehicle is reserved by another user")
			}
			if vehicle.Status != domain.VehicleStatusAvailable {
				return newError(ErrInvalidState, "vehicle is currently %s", vehicle.Status)
			}
			ride = &domain.Ride{
				ID:            uuid.New().String(),
				UserID:        req.UserID,
				VehicleID:     req.VehicleID,
				PaymentMethod: domain.PaymentMethodWallet,
				CreatedAt:     now,
			}
		}

		loc := req.Location
		ride.Status = domain.RideStatusActive
		ride.StartTime = now
		ride.StartLocation = &loc
		ride.UpdatedAt = now

		if open != nil {
			err = r.Rides().Update(ctx, ride)
		} else {
			err = r.Rides().Create(ctx, ride)
		}
		if errors.Is(err, repository.ErrConflict) {
			return newError(ErrInvalidState, "you already have an open ride")
		}
		if err != nil {
			return err
		}

		vehicle.Status = domain.VehicleStatusInUse
		vehicle.CurrentRideID = ride.ID
		vehicle.UpdatedAt = now
		if err := r.Vehicles().Update(ctx, vehicle); err != nil {
			return err
		}

		result = &StartRideResult{Ride: ride, Vehicle: vehicle}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ride := range expired {
		s.reservations.afterExpiry(ctx, ride)
	}
	s.deps.Metrics.RideTransition(string(domain.RideStatusActive))
	s.index.invalidate(ctx, req.VehicleID)

	s.deps.Log.Info().
		Str("ride_id", result.Ride.ID).
		Str("user_id", req.UserID).
		Str("vehicle_id", req.VehicleID).
		Msg("ride started")
	s.deps.notify(func(n *NotificationService) error {
		return n.NotifyRideStarted(ctx, result.Ride)
	})

	return result, nil
}

// EndRideRequest contains the parameters for ending a ride.
type EndRideRequest struct {
	RideID   string
	UserID   string
	Location domain.Location
}

// PaymentSummary is what the rider is shown when a ride ends.
type PaymentSummary struct {
	DurationMinutes int
	DistanceKm      float64
	OriginalFare    float64
	PointsRedeemed  int
	FinalFare       float64
	CarbonSavedKg   float64
	PointsEarned    int
	TotalPoints     int
	WalletBalance   float64
}

// EndRideResult contains the result of ending a ride.
type EndRideResult struct {
	Ride    *domain.Ride
	Vehicle *domain.Vehicle
	Summary PaymentSummary
}

// End completes an active ride, prices it and settles the fare. Ride,
// vehicle, user balances and the ledger entry are written together; if the
// wallet cannot cover the fare nothing is written and the ride stays active.
func (s *RideService) End(ctx context.Context, req EndRideRequest) (*EndRideResult, error) {
	if !req.Location.Valid() {
		return nil, newError(ErrValidation, "invalid end location")
	}
	if req.Location.Address == "" {
		req.Location.Address = defaultEndAddress
	}

	ride, err := s.deps.Store.Rides().GetByID(ctx, req.RideID)
	if err != nil {
		return nil, notFound(err, "ride")
	}
	if ride.UserID != req.UserID {
		return nil, newError(ErrForbidden, "not authorized to end this ride")
	}

	now := s.now()
	var result *EndRideResult

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		result = nil

		user, err := r.Users().GetByIDForUpdate(ctx, ride.UserID)
		if err != nil {
			return notFound(err, "user")
		}
		ride, err := r.Rides().GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return notFound(err, "ride")
		}
		if !domain.CanTransition(ride.Status, domain.RideStatusCompleted) {
			return newError(ErrInvalidState, "ride is not active")
		}
		if ride.StartLocation == nil || !ride.StartLocation.Valid() {
			return newError(ErrValidation, "invalid start location")
		}
		vehicle, err := r.Vehicles().GetByIDForUpdate(ctx, ride.VehicleID)
		if err != nil {
			return notFound(err, "vehicle")
		}

		end := req.Location
		ride.SetEndTime(now)
		distance := fare.DistanceKm(*ride.StartLocation, end)
		breakdown := s.pricing.Breakdown(ride.DurationMinutes, distance)
		carbon := s.pricing.CarbonSavedKg(distance)

		settlement, err := s.ledger.Settle(user, breakdown.Total)
		if err != nil {
			return err
		}

		ride.Status = domain.RideStatusCompleted
		ride.EndLocation = &end
		ride.DistanceKm = distance
		ride.BaseFare = breakdown.BaseFare
		ride.TimeFare = breakdown.TimeFare
		ride.DistanceFare = breakdown.DistanceFare
		ride.OriginalFare = breakdown.Total
		ride.Fare = settlement.FinalFare
		ride.CarbonSavedKg = carbon
		ride.PointsRedeemed = settlement.PointsRedeemed
		ride.PointsEarned = settlement.PointsEarned
		ride.IsPaid = true
		ride.UpdatedAt = now
		if err := r.Rides().Update(ctx, ride); err != nil {
			return err
		}

		vehicle.Release()
		vehicle.Location = end
		vehicle.TotalKmTraveled = fare.Round2(vehicle.TotalKmTraveled + distance)
		vehicle.Battery = fare.NextBatteryLevel(vehicle.Battery, distance, vehicle.Type)
		vehicle.UpdatedAt = now
		if err := r.Vehicles().Update(ctx, vehicle); err != nil {
			return err
		}

		user.TotalRides++
		user.TotalDistanceKm = fare.Round2(user.TotalDistanceKm + distance)
		user.CarbonSavedKg = fare.Round2(user.CarbonSavedKg + carbon)
		user.UpdatedAt = now
		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}

		if err := r.Transactions().Create(ctx, &domain.WalletTransaction{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			RideID:         ride.ID,
			Type:           domain.TransactionTypeRidePayment,
			Amount:         settlement.FinalFare,
			BalanceBefore:  settlement.BalanceBefore,
			BalanceAfter:   settlement.NewWalletBalance,
			PointsRedeemed: settlement.PointsRedeemed,
			PointsEarned:   settlement.PointsEarned,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		result = &EndRideResult{
			Ride:    ride,
			Vehicle: vehicle,
			Summary: PaymentSummary{
				DurationMinutes: ride.DurationMinutes,
				DistanceKm:      distance,
				OriginalFare:    breakdown.Total,
				PointsRedeemed:  settlement.PointsRedeemed,
				FinalFare:       settlement.FinalFare,
				CarbonSavedKg:   carbon,
				PointsEarned:    settlement.PointsEarned,
				TotalPoints:     settlement.NewPointsBalance,
				WalletBalance:   settlement.NewWalletBalance,
			},
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.deps.Metrics.Settlement(Code(err), 0)
			s.deps.notify(func(n *NotificationService) error {
				return n.NotifyPaymentFailed(ctx, ride, err.Error())
			})
		}
		return nil, err
	}

	s.deps.Metrics.Settlement("ok", result.Summary.FinalFare)
	s.deps.Metrics.RideTransition(string(domain.RideStatusCompleted))
	s.index.refresh(ctx, result.Vehicle)

	s.deps.Log.Info().
		Str("ride_id", result.Ride.ID).
		Str("user_id", result.Ride.UserID).
		Int("duration_min", result.Summary.DurationMinutes).
		Float64("distance_km", result.Summary.DistanceKm).
		Float64("final_fare", result.Summary.FinalFare).
		Msg("ride completed")
	s.deps.notify(func(n *NotificationService) error {
		return n.NotifyRideCompleted(ctx, result.Ride, result.Summary)
	})

	return result, nil
}

// Cancel cancels a reserved or active ride and frees its vehicle. No fare is charged.
func (s *RideService) Cancel(ctx context.Context, rideID, userID string) (*domain.Ride, error) {
	ride, err := s.deps.Store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, "ride")
	}
	if ride.UserID != userID {
		return nil, newError(ErrForbidden, "not authorized to cancel this ride")
	}

	now := s.now()
	var (
		cancelled *domain.Ride
		expired   bool
	)

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		cancelled, expired = nil, false

		if _, err := r.Users().GetByIDForUpdate(ctx, ride.UserID); err != nil {
			return notFound(err, "user")
		}
		locked, err := r.Rides().GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return notFound(err, "ride")
		}

		// A stale reservation is expired rather than cancelled, and that outcome commits.
		expired, err = expireIfStale(ctx, r, locked, now, s.reservations.Timeout())
		if err != nil || expired {
			cancelled = locked
			return err
		}

		if !domain.CanTransition(locked.Status, domain.RideStatusCancelled) {
			return newError(ErrInvalidState, "ride is already %s", locked.Status)
		}

		locked.Status = domain.RideStatusCancelled
		locked.EndTime = now
		locked.CancelReason = CancelReasonUser
		locked.UpdatedAt = now
		if err := r.Rides().Update(ctx, locked); err != nil {
			return err
		}

		vehicle, err := r.Vehicles().GetByIDForUpdate(ctx, locked.VehicleID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if vehicle != nil && (vehicle.CurrentRideID == locked.ID || vehicle.CurrentRideID == "") {
			vehicle.Release()
			vehicle.UpdatedAt = now
			if err := r.Vehicles().Update(ctx, vehicle); err != nil {
				return err
			}
		}

		cancelled = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.reservations.afterExpiry(ctx, cancelled)
		return nil, newError(ErrInvalidState, "reservation has already expired")
	}

	s.deps.Metrics.RideTransition(string(domain.RideStatusCancelled))
	s.index.invalidate(ctx, cancelled.VehicleID)

	s.deps.Log.Info().
		Str("ride_id", cancelled.ID).
		Str("user_id", userID).
		Msg("ride cancelled")
	s.deps.notify(func(n *NotificationService) error {
		return n.NotifyRideCancelled(ctx, cancelled)
	})

	return cancelled, nil
}

// RateRideRequest contains the parameters for rating a ride.
type RateRideRequest struct {
	RideID   string
	UserID   string
	Rating   int
	Feedback string
}

// Rate attaches a rating to a completed ride. A ride can be rated once.
func (s *RideService) Rate(ctx context.Context, req RateRideRequest) (*domain.Ride, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, newError(ErrValidation, "rating must be between 1 and 5")
	}
	if len([]rune(req.Feedback)) > domain.MaxFeedbackLength {
		return nil, newError(ErrValidation, "feedback cannot exceed %d characters", domain.MaxFeedbackLength)
	}

	ride, err := s.deps.Store.Rides().GetByID(ctx, req.RideID)
	if err != nil {
		return nil, notFound(err, "ride")
	}
	if ride.UserID != req.UserID {
		return nil, newError(ErrForbidden, "not authorized to rate this ride")
	}

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		locked, err := r.Rides().GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return notFound(err, "ride")
		}
		if locked.Status != domain.RideStatusCompleted {
			return newError(ErrInvalidState, "only completed rides can be rated")
		}
		if locked.Rating != 0 {
			return newError(ErrAlreadyRated, "ride has already been rated")
		}

		locked.Rating = req.Rating
		locked.Feedback = req.Feedback
		locked.UpdatedAt = s.now()
		if err := r.Rides().Update(ctx, locked); err != nil {
			return err
		}
		ride = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ride, nil
}

// Get returns a ride visible to its owner or an admin. A stale reservation
// is expired before it is returned.
func (s *RideService) Get(ctx context.Context, rideID string, requester Requester) (*domain.Ride, error) {
	ride, err := s.deps.Store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, "ride")
	}
	if ride.UserID != requester.UserID && !requester.Admin {
		return nil, newError(ErrForbidden, "not authorized to view this ride")
	}

	if ride.ReservationExpired(s.now(), s.reservations.Timeout()) {
		if _, err := s.reservations.Expire(ctx, ride.ID); err != nil {
			return nil, err
		}
		if ride, err = s.deps.Store.Rides().GetByID(ctx, rideID); err != nil {
			return nil, notFound(err, "ride")
		}
	}

	return ride, nil
}

// Active returns the user's reserved or active ride.
func (s *RideService) Active(ctx context.Context, userID string) (*domain.Ride, error) {
	if err := s.reservations.expireForUser(ctx, userID); err != nil {
		return nil, err
	}

	ride, err := s.deps.Store.Rides().FindOpenByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "no active ride found")
		}
		return nil, err
	}
	return ride, nil
}

// HistoryQuery selects a page of ride history.
type HistoryQuery struct {
	Status domain.RideStatus
	Page   int
	Limit  int
}

// HistoryResult is one page of ride history.
type HistoryResult struct {
	Rides []*domain.Ride
	Total int
	Page  int
	Pages int
}

// History lists the user's rides, newest first.
func (s *RideService) History(ctx context.Context, userID string, q HistoryQuery) (*HistoryResult, error) {
	switch q.Status {
	case "", domain.RideStatusReserved, domain.RideStatusActive, domain.RideStatusCompleted, domain.RideStatusCancelled:
	default:
		return nil, newError(ErrValidation, "unknown ride status %q", q.Status)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultHistoryLimit
	}
	q.Limit = min(q.Limit, maxHistoryLimit)

	if err := s.reservations.expireForUser(ctx, userID); err != nil {
		return nil, err
	}

	rides, total, err := s.deps.Store.Rides().ListByUser(ctx, userID, repository.RideFilter{
		Status: q.Status,
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &HistoryResult{
		Rides: rides,
		Total: total,
		Page:  q.Page,
		Pages: int(math.Ceil(float64(total) / float64(q.Limit))),
	}, nil
}

// Receipt builds the receipt of a completed ride.
func (s *RideService) Receipt(ctx context.Context, rideID string, requester Requester) (*domain.Receipt, error) {
	ride, err := s.Get(ctx, rideID, requester)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, newError(ErrInvalidState, "receipts are only available for completed rides")
	}

	vehicle, err := s.deps.Store.Vehicles().GetByID(ctx, ride.VehicleID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return s.receipts.GenerateReceipt(ride, vehicle), nil
}
