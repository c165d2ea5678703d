package domain

import (
	"math"
	"time"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusReserved  RideStatus = "reserved"
	RideStatusActive    RideStatus = "active"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// allowedTransitions is the ride state machine. Completed and cancelled are terminal.
var allowedTransitions = map[RideStatus][]RideStatus{
	RideStatusReserved: {RideStatusActive, RideStatusCancelled},
	RideStatusActive:   {RideStatusCompleted, RideStatusCancelled},
}

// CanTransition reports whether a ride may move from one status to another.
func CanTransition(from, to RideStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentMethod represents how a ride was paid for.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
)

// MaxFeedbackLength bounds the free-text feedback on a rating.
const MaxFeedbackLength = 500

// Ride represents one rental session from reservation or start to completion or cancellation.
type Ride struct {
	ID            string
	UserID        string
	VehicleID     string
	Status        RideStatus
	ReservedAt    time.Time
	StartTime     time.Time
	EndTime       time.Time
	StartLocation *Location
	EndLocation   *Location

	DistanceKm      float64
	DurationMinutes int

	BaseFare       float64
	TimeFare       float64
	DistanceFare   float64
	OriginalFare   float64 // before reward point redemption
	Fare           float64 // charged to the wallet
	CarbonSavedKg  float64
	PointsEarned   int
	PointsRedeemed int
	IsPaid         bool
	PaymentMethod  PaymentMethod

	Rating       int // 0 until rated
	Feedback     string
	CancelReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the ride still holds its vehicle.
func (r *Ride) IsOpen() bool {
	return r.Status == RideStatusReserved || r.Status == RideStatusActive
}

// ReservationExpired reports whether a reserved ride has outlived its reservation window.
func (r *Ride) ReservationExpired(now time.Time, window time.Duration) bool {
	if r.Status != RideStatusReserved || r.ReservedAt.IsZero() {
		return false
	}
	return !now.Before(r.ReservedAt.Add(window))
}

// SetEndTime records the end of the ride and derives its duration in whole minutes.
func (r *Ride) SetEndTime(t time.Time) {
	r.EndTime = t
	if r.StartTime.IsZero() {
		return
	}
	minutes := math.Round(t.Sub(r.StartTime).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	r.DurationMinutes = int(minutes)
}

// Clone returns a deep copy of the ride.
func (r *Ride) Clone() *Ride {
	c := *r
	if r.StartLocation != nil {
		loc := *r.StartLocation
		c.StartLocation = &loc
	}
	if r.EndLocation != nil {
		loc := *r.EndLocation
		c.EndLocation = &loc
	}
	return &c
}
