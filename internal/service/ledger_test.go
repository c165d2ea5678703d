package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
)

func TestLedgerSettle(t *testing.T) {
	tests := []struct {
		name         string
		balance      float64
		points       int
		fare         float64
		wantRedeemed int
		wantFinal    float64
		wantEarned   int
		wantBalance  float64
		wantPoints   int
	}{
		{"wallet only", 100, 0, 35, 0, 35, 3, 65, 3},
		{"points cover the fare", 0, 50, 35, 35, 0, 0, 0, 15},
		{"points cover part", 30, 10, 35, 10, 25, 2, 5, 2},
		{"fractional fare keeps the cents", 10, 100, 35.4, 35, 0.4, 0, 9.6, 65},
		{"exact balance", 35, 0, 35, 0, 35, 3, 0, 3},
		{"cashback on round amount", 100, 0, 30, 0, 30, 3, 70, 3},
	}

	ledger := NewLedger(0.10)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &domain.User{WalletBalance: tt.balance, RewardPoints: tt.points}

			s, err := ledger.Settle(user, tt.fare)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRedeemed, s.PointsRedeemed)
			assert.Equal(t, tt.wantFinal, s.FinalFare)
			assert.Equal(t, tt.wantEarned, s.PointsEarned)
			assert.Equal(t, tt.wantBalance, s.NewWalletBalance)
			assert.Equal(t, tt.wantPoints, s.NewPointsBalance)
			assert.Equal(t, tt.wantBalance, user.WalletBalance)
			assert.Equal(t, tt.wantPoints, user.RewardPoints)
			assert.Equal(t, tt.balance, s.BalanceBefore)
		})
	}
}

func TestLedgerSettleInsufficientFundsLeavesUserUntouched(t *testing.T) {
	user := &domain.User{WalletBalance: 20, RewardPoints: 5}

	_, err := NewLedger(0.10).Settle(user, 35)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "INSUFFICIENT_FUNDS", Code(err))
	assert.Contains(t, err.Error(), "required 30.00")
	assert.Equal(t, 20.0, user.WalletBalance)
	assert.Equal(t, 5, user.RewardPoints)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", Code(newError(ErrNotFound, "ride not found")))
	assert.Equal(t, "ALREADY_RATED", Code(newError(ErrAlreadyRated, "x")))
	assert.Equal(t, "INTERNAL", Code(assert.AnError))
	assert.Equal(t, "INTERNAL", Code(nil))
}
