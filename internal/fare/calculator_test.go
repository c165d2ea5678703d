package fare

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"evride/internal/domain"
)

var (
	mgRoad   = domain.Location{Lat: 12.9716, Lng: 77.5946}
	oneKmOut = domain.Location{Lat: 12.9806, Lng: 77.5946}
)

func TestDistanceKm(t *testing.T) {
	assert.Equal(t, 1.0, DistanceKm(mgRoad, oneKmOut))
	assert.Equal(t, 0.0, DistanceKm(mgRoad, mgRoad))
	assert.Equal(t, DistanceKm(mgRoad, oneKmOut), DistanceKm(oneKmOut, mgRoad))
}

func TestFare(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		minutes  int
		km       float64
		expected float64
	}{
		{"zero ride costs the base fare", 0, 0, 10},
		{"ten minutes one km", 10, 1, 35},
		{"fractional distance", 15, 2.37, 51.85},
		{"long ride", 90, 30, 340},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cfg.Fare(tt.minutes, tt.km))
		})
	}
}

func TestFareIsMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	for m := 0; m < 60; m += 7 {
		for d := 0.0; d < 20; d += 1.3 {
			f := cfg.Fare(m, d)
			assert.GreaterOrEqual(t, f, cfg.BaseFare)
			assert.GreaterOrEqual(t, cfg.Fare(m+1, d), f)
			assert.GreaterOrEqual(t, cfg.Fare(m, d+0.5), f)
		}
	}
}

func TestBreakdownSumsToTotal(t *testing.T) {
	b := DefaultConfig().Breakdown(12, 3.4)
	assert.Equal(t, 10.0, b.BaseFare)
	assert.Equal(t, 24.0, b.TimeFare)
	assert.Equal(t, 17.0, b.DistanceFare)
	assert.Equal(t, 51.0, b.Total)
}

func TestCarbonSavedKg(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.11, cfg.CarbonSavedKg(1))
	assert.Equal(t, 1.08, cfg.CarbonSavedKg(10))
	assert.Equal(t, 0.0, cfg.CarbonSavedKg(0))
}

func TestEstimate(t *testing.T) {
	est := DefaultConfig().Estimate(1)

	assert.Equal(t, 3, est.EstimatedDurationMinutes)
	assert.Equal(t, 10.0, est.BaseFare)
	assert.Equal(t, 5.0, est.DistanceCharge)
	assert.Equal(t, 6.0, est.TimeCharge)
	assert.Equal(t, 21.0, est.EstimatedTotal)
	assert.Equal(t, 0.11, est.EstimatedCarbonSavedKg)
}

func TestEstimateFallsBackToDefaultSpeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AverageSpeedKmh = 0
	assert.Equal(t, 30, cfg.EstimatedDurationMinutes(10))
}

func TestNextBatteryLevel(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		km       float64
		vtype    domain.VehicleType
		expected float64
	}{
		{"scooter", 100, 1, domain.VehicleTypeScooter, 98},
		{"bike", 80, 3, domain.VehicleTypeBike, 76.01},
		{"ev", 50, 10, domain.VehicleTypeEV, 37.5},
		{"unknown type uses scooter rate", 50, 10, domain.VehicleType("hoverboard"), 30},
		{"clamped at zero", 10, 100, domain.VehicleTypeScooter, 0},
		{"no distance", 42.5, 0, domain.VehicleTypeEV, 42.5},
		{"clamped at full charge", 150, 1, domain.VehicleTypeScooter, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBatteryLevel(tt.current, tt.km, tt.vtype)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, got, tt.current)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}
