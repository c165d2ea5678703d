package service

import (
	"math"

	"evride/internal/domain"
	"evride/internal/fare"
)

// Ledger settles a ride fare against a user's reward points and wallet.
// One reward point is worth one currency unit.
type Ledger struct {
	cashbackRate float64
}

// NewLedger creates a Ledger that returns cashbackRate of every paid fare as points.
func NewLedger(cashbackRate float64) *Ledger {
	return &Ledger{cashbackRate: cashbackRate}
}

// Settlement is the outcome of settling one fare.
type Settlement struct {
	Fare             float64
	PointsRedeemed   int
	FinalFare        float64
	PointsEarned     int
	BalanceBefore    float64
	NewWalletBalance float64
	NewPointsBalance int
}

// Settle redeems points against the fare, debits the remainder from the
// wallet and credits cashback points. It updates user only on success; an
// ErrInsufficientFunds result leaves user untouched.
func (l *Ledger) Settle(user *domain.User, amount float64) (Settlement, error) {
	redeemed := min(user.RewardPoints, int(math.Floor(amount)))
	if redeemed < 0 {
		redeemed = 0
	}
	finalFare := fare.Round2(amount - float64(redeemed))

	if user.WalletBalance < finalFare {
		return Settlement{}, newError(ErrInsufficientFunds,
			"insufficient wallet balance: required %.2f, available %.2f, please add money to continue",
			finalFare, user.WalletBalance)
	}

	// The epsilon absorbs float error so a whole product is not floored a point short.
	earned := int(math.Floor(finalFare*l.cashbackRate + 1e-9))

	s := Settlement{
		Fare:             amount,
		PointsRedeemed:   redeemed,
		FinalFare:        finalFare,
		PointsEarned:     earned,
		BalanceBefore:    user.WalletBalance,
		NewWalletBalance: fare.Round2(user.WalletBalance - finalFare),
		NewPointsBalance: user.RewardPoints - redeemed + earned,
	}

	user.WalletBalance = s.NewWalletBalance
	user.RewardPoints = s.NewPointsBalance
	return s, nil
}
