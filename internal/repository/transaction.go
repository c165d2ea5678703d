package repository

import (
	"context"

	"evride/internal/domain"
)

// TransactionRepository defines the persistence operations for the wallet ledger.
type TransactionRepository interface {
	// Create appends a ledger entry.
	Create(ctx context.Context, txn *domain.WalletTransaction) error

	// ListByUser returns the user's entries, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.WalletTransaction, error)
}
