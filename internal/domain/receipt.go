package domain

import "time"

// Receipt represents the invoice of a completed ride.
type Receipt struct {
	ID              string
	RideID          string
	UserID          string
	VehicleID       string
	VehicleNumber   string
	VehicleType     VehicleType
	StartLocation   Location
	EndLocation     Location
	DurationMinutes int
	DistanceKm      float64
	BaseFare        float64
	TimeFare        float64
	DistanceFare    float64
	OriginalFare    float64
	PointsRedeemed  int
	FinalFare       float64
	PointsEarned    int
	CarbonSavedKg   float64
	PaymentMethod   PaymentMethod
	StartedAt       time.Time
	EndedAt         time.Time
	CreatedAt       time.Time
}
