package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
)

type decliningPSP struct{}

func (decliningPSP) Charge(ctx context.Context, userID string, amount float64) (bool, error) {
	return false, nil
}

func TestWalletTopUp(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 10, 4)

	res, err := f.wallet.TopUp(f.ctx, "u1", 250.456)
	require.NoError(t, err)

	assert.Equal(t, 250.46, res.AmountAdded)
	assert.Equal(t, 260.46, res.WalletBalance)
	assert.Equal(t, domain.TransactionTypeTopUp, res.Transaction.Type)
	assert.Equal(t, 10.0, res.Transaction.BalanceBefore)
	assert.Equal(t, 260.46, res.Transaction.BalanceAfter)

	balance, err := f.wallet.Balance(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &Balance{WalletBalance: 260.46, RewardPoints: 4}, balance)

	txns, err := f.wallet.Transactions(f.ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, res.Transaction.ID, txns[0].ID)

	assert.Equal(t, []NotificationType{NotificationWalletTopUp}, f.notificationTypes(t))
}

func TestWalletTopUp_Errors(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 10, 0)

	tests := []struct {
		name   string
		userID string
		amount float64
		want   error
	}{
		{"zero amount", "u1", 0, ErrValidation},
		{"negative amount", "u1", -5, ErrValidation},
		{"rounds to zero", "u1", 0.004, ErrValidation},
		{"not a number", "u1", math.NaN(), ErrValidation},
		{"above maximum", "u1", 10000.01, ErrValidation},
		{"unknown user", "ghost", 10, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.wallet.TopUp(f.ctx, tt.userID, tt.amount)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 10.0, f.user(t, "u1").WalletBalance)
	txns, err := f.wallet.Transactions(f.ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestWalletTopUp_DeclinedCharge(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 10, 0)
	wallet := NewWalletService(Dependencies{Store: f.store}, decliningPSP{}, 10000)

	_, err := wallet.TopUp(f.ctx, "u1", 50)

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 10.0, f.user(t, "u1").WalletBalance)
	txns, err := wallet.Transactions(f.ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestWalletTransactions_NewestFirst(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)

	_, err := f.wallet.TopUp(f.ctx, "u1", 20)
	require.NoError(t, err)
	f.completedRide(t, "u1", "v1")

	txns, err := f.wallet.Transactions(f.ctx, "u1", 1, 10)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.TransactionTypeRidePayment, txns[0].Type)
	assert.Equal(t, domain.TransactionTypeTopUp, txns[1].Type)

	second, err := f.wallet.Transactions(f.ctx, "u1", 2, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, domain.TransactionTypeTopUp, second[0].Type)

	_, err = f.wallet.Transactions(f.ctx, "ghost", 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRegister(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Register(f.ctx, RegisterUserRequest{UserID: "u1", Name: "  Asha ", Email: "Asha@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, domain.UserRoleUser, user.Role)
	assert.Zero(t, user.WalletBalance)

	_, err = f.users.Register(f.ctx, RegisterUserRequest{UserID: "u1", Name: "Again"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.users.Register(f.ctx, RegisterUserRequest{UserID: "u2", Name: "Bad", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.Register(f.ctx, RegisterUserRequest{UserID: "u3"})
	assert.ErrorIs(t, err, ErrValidation)

	profile, err := f.users.Profile(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", profile.Name)

	_, err = f.users.Profile(f.ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
