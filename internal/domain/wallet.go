package domain

import "time"

// TransactionType represents the kind of wallet movement.
type TransactionType string

const (
	TransactionTypeTopUp       TransactionType = "topup"
	TransactionTypeRidePayment TransactionType = "ride_payment"
)

// WalletTransaction is one entry in a user's wallet ledger.
type WalletTransaction struct {
	ID             string
	UserID         string
	RideID         string // empty for top-ups
	Type           TransactionType
	Amount         float64
	BalanceBefore  float64
	BalanceAfter   float64
	PointsRedeemed int
	PointsEarned   int
	CreatedAt      time.Time
}
