package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"evride/internal/domain"
	"evride/internal/fare"
	"evride/internal/repository"
)

// PSP is the interface for the Payment Service Provider that funds wallet top-ups.
type PSP interface {
	Charge(ctx context.Context, userID string, amount float64) (bool, error)
}

// MockPSP is a PSP that approves every charge. It is used until a real
// provider is integrated.
type MockPSP struct{}

// NewMockPSP creates a new mock PSP.
func NewMockPSP() *MockPSP {
	return &MockPSP{}
}

// Charge simulates a payment charge. Always succeeds.
func (p *MockPSP) Charge(ctx context.Context, userID string, amount float64) (bool, error) {
	return true, nil
}

// WalletService handles wallet top-ups and balance queries.
type WalletService struct {
	deps     Dependencies
	psp      PSP
	maxTopUp float64
	now      func() time.Time
}

// NewWalletService creates a new WalletService. Top-ups above maxTopUp are rejected.
func NewWalletService(deps Dependencies, psp PSP, maxTopUp float64) *WalletService {
	if psp == nil {
		psp = NewMockPSP()
	}
	return &WalletService{deps: deps, psp: psp, maxTopUp: maxTopUp, now: deps.clock()}
}

// TopUpResult contains the result of a top-up.
type TopUpResult struct {
	WalletBalance float64
	AmountAdded   float64
	Transaction   *domain.WalletTransaction
}

// TopUp charges the PSP and credits the wallet.
func (s *WalletService) TopUp(ctx context.Context, userID string, amount float64) (*TopUpResult, error) {
	amount = fare.Round2(amount)
	if !(amount > 0) {
		return nil, newError(ErrValidation, "amount must be greater than 0")
	}
	if amount > s.maxTopUp {
		return nil, newError(ErrValidation, "maximum top-up amount is %.2f", s.maxTopUp)
	}

	if _, err := s.deps.Store.Users().GetByID(ctx, userID); err != nil {
		return nil, notFound(err, "user")
	}

	ok, err := s.psp.Charge(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrInvalidState, "payment was declined")
	}

	now := s.now()
	var result *TopUpResult
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		user, err := r.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return notFound(err, "user")
		}

		txn := &domain.WalletTransaction{
			ID:            uuid.New().String(),
			UserID:        userID,
			Type:          domain.TransactionTypeTopUp,
			Amount:        amount,
			BalanceBefore: user.WalletBalance,
			BalanceAfter:  fare.Round2(user.WalletBalance + amount),
			CreatedAt:     now,
		}

		user.WalletBalance = txn.BalanceAfter
		user.UpdatedAt = now
		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}
		if err := r.Transactions().Create(ctx, txn); err != nil {
			return err
		}

		result = &TopUpResult{WalletBalance: user.WalletBalance, AmountAdded: amount, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.TopUp(amount)
	s.deps.Log.Info().
		Str("user_id", userID).
		Float64("amount", amount).
		Float64("balance", result.WalletBalance).
		Msg("wallet topped up")
	s.deps.notify(func(n *NotificationService) error {
		return n.NotifyWalletTopUp(ctx, userID, amount, result.WalletBalance)
	})

	return result, nil
}

// Balance contains a user's spendable balances.
type Balance struct {
	WalletBalance float64
	RewardPoints  int
}

// Balance returns the user's wallet balance and reward points.
func (s *WalletService) Balance(ctx context.Context, userID string) (*Balance, error) {
	user, err := s.deps.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &Balance{WalletBalance: user.WalletBalance, RewardPoints: user.RewardPoints}, nil
}

// Transactions returns a page of the user's wallet ledger, newest first.
func (s *WalletService) Transactions(ctx context.Context, userID string, page, limit int) ([]*domain.WalletTransaction, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	if _, err := s.deps.Store.Users().GetByID(ctx, userID); err != nil {
		return nil, notFound(err, "user")
	}
	return s.deps.Store.Transactions().ListByUser(ctx, userID, limit, (page-1)*limit)
}
