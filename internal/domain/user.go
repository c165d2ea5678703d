package domain

import "time"

// UserRole represents the role the identity provider assigned to a user.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents a rider with a wallet and reward point balance.
type User struct {
	ID              string
	Name            string
	Email           string
	Role            UserRole
	RewardPoints    int
	WalletBalance   float64
	TotalRides      int
	TotalDistanceKm float64
	CarbonSavedKg   float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
