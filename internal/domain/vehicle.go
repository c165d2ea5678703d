package domain

import "time"

// VehicleType represents the kind of electric vehicle.
type VehicleType string

const (
	VehicleTypeScooter VehicleType = "scooter"
	VehicleTypeBike    VehicleType = "bike"
	VehicleTypeEV      VehicleType = "ev"
)

// Valid reports whether t is one of the known vehicle types.
func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeScooter, VehicleTypeBike, VehicleTypeEV:
		return true
	default:
		return false
	}
}

// VehicleStatus represents the current status of a vehicle.
type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "available"
	VehicleStatusReserved    VehicleStatus = "reserved"
	VehicleStatusInUse       VehicleStatus = "in-use"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusCharging    VehicleStatus = "charging"
)

// Valid reports whether s is one of the known vehicle statuses.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusReserved, VehicleStatusInUse,
		VehicleStatusMaintenance, VehicleStatusCharging:
		return true
	default:
		return false
	}
}

// Vehicle represents a rentable vehicle in the fleet.
//
// Status reserved or in-use always comes with a non-empty CurrentRideID
// pointing at a ride in the matching state.
type Vehicle struct {
	ID              string
	Number          string
	Type            VehicleType
	Brand           string
	Model           string
	Battery         float64 // percent, 0..100
	RangeKm         float64 // range on a full battery
	Status          VehicleStatus
	Location        Location
	CurrentRideID   string
	TotalKmTraveled float64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RemainingRangeKm estimates the range left with the current battery.
func (v *Vehicle) RemainingRangeKm() float64 {
	return v.Battery / 100 * v.RangeKm
}

// Release returns the vehicle to the available pool.
func (v *Vehicle) Release() {
	v.Status = VehicleStatusAvailable
	v.CurrentRideID = ""
}
