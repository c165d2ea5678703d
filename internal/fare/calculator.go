// Package fare holds the pure pricing, carbon and battery arithmetic of a ride.
// All monetary and distance results are rounded to two decimals.
package fare

import (
	"math"

	"evride/internal/domain"
)

const earthRadiusKm = 6371.0

// Config holds the pricing constants. It is read once at startup and never mutated.
type Config struct {
	BaseFare          float64 // flat charge per ride
	PerMinuteCharge   float64
	PerKmCharge       float64
	CarbonSavingPerKm float64 // kg CO2 saved per km
	AverageSpeedKmh   float64 // used to estimate ride duration
}

// DefaultConfig returns the default pricing.
func DefaultConfig() Config {
	return Config{
		BaseFare:          10,
		PerMinuteCharge:   2,
		PerKmCharge:       5,
		CarbonSavingPerKm: 0.108,
		AverageSpeedKmh:   20,
	}
}

// Breakdown is the itemised fare of a ride.
type Breakdown struct {
	BaseFare     float64
	TimeFare     float64
	DistanceFare float64
	Total        float64
}

// Estimate is a pre-ride quote.
type Estimate struct {
	DistanceKm               float64
	BaseFare                 float64
	DistanceCharge           float64
	TimeCharge               float64
	EstimatedTotal           float64
	EstimatedDurationMinutes int
	EstimatedCarbonSavedKg   float64
}

// Round2 rounds v to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b domain.Location) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return Round2(earthRadiusKm * c)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Fare returns the total price of a ride.
func (c Config) Fare(durationMinutes int, distanceKm float64) float64 {
	return c.Breakdown(durationMinutes, distanceKm).Total
}

// Breakdown returns the itemised price of a ride.
func (c Config) Breakdown(durationMinutes int, distanceKm float64) Breakdown {
	b := Breakdown{
		BaseFare:     Round2(c.BaseFare),
		TimeFare:     Round2(float64(durationMinutes) * c.PerMinuteCharge),
		DistanceFare: Round2(distanceKm * c.PerKmCharge),
	}
	b.Total = Round2(c.BaseFare + float64(durationMinutes)*c.PerMinuteCharge + distanceKm*c.PerKmCharge)
	return b
}

// CarbonSavedKg returns the CO2 saved by riding distanceKm on an electric vehicle.
func (c Config) CarbonSavedKg(distanceKm float64) float64 {
	return Round2(distanceKm * c.CarbonSavingPerKm)
}

// EstimatedDurationMinutes predicts ride time at the configured average speed.
func (c Config) EstimatedDurationMinutes(distanceKm float64) int {
	speed := c.AverageSpeedKmh
	if speed <= 0 {
		speed = DefaultConfig().AverageSpeedKmh
	}
	return int(math.Round(distanceKm / speed * 60))
}

// Estimate quotes a ride of distanceKm before it starts.
func (c Config) Estimate(distanceKm float64) Estimate {
	minutes := c.EstimatedDurationMinutes(distanceKm)
	b := c.Breakdown(minutes, distanceKm)
	return Estimate{
		DistanceKm:               Round2(distanceKm),
		BaseFare:                 b.BaseFare,
		DistanceCharge:           b.DistanceFare,
		TimeCharge:               b.TimeFare,
		EstimatedTotal:           b.Total,
		EstimatedDurationMinutes: minutes,
		EstimatedCarbonSavedKg:   c.CarbonSavedKg(distanceKm),
	}
}

// ConsumptionPerKm returns the battery percentage a vehicle type drains per km.
// Unknown types drain at the scooter rate.
func ConsumptionPerKm(t domain.VehicleType) float64 {
	switch t {
	case domain.VehicleTypeScooter:
		return 2
	case domain.VehicleTypeBike:
		return 1.33
	case domain.VehicleTypeEV:
		return 1.25
	default:
		return 2
	}
}

// NextBatteryLevel returns the battery level after riding distanceKm, clamped
// to [0, 100].
func NextBatteryLevel(current, distanceKm float64, t domain.VehicleType) float64 {
	return Round2(math.Min(100, math.Max(0, current-distanceKm*ConsumptionPerKm(t))))
}
