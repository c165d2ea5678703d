package postgres

import (
	"context"
	"database/sql"

	"evride/internal/domain"
	"evride/internal/repository"
)

// TransactionRepository is a PostgreSQL implementation of repository.TransactionRepository.
type TransactionRepository struct {
	q Querier
}

// NewTransactionRepository creates a new PostgreSQL wallet ledger repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{q: db}
}

// NewTransactionRepositoryWithTx creates a wallet ledger repository using a transaction.
func NewTransactionRepositoryWithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Create appends a ledger entry.
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (id, user_id, ride_id, type, amount, balance_before,
			balance_after, points_redeemed, points_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		txn.ID,
		txn.UserID,
		nullString(txn.RideID),
		txn.Type,
		txn.Amount,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.PointsRedeemed,
		txn.PointsEarned,
		txn.CreatedAt,
	)
	return translateError(err)
}

// ListByUser returns the user's entries, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.WalletTransaction, error) {
	query := `
		SELECT id, user_id, ride_id, type, amount, balance_before, balance_after,
			points_redeemed, points_earned, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.q.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.WalletTransaction
	for rows.Next() {
		var txn domain.WalletTransaction
		var rideID sql.NullString
		if err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&rideID,
			&txn.Type,
			&txn.Amount,
			&txn.BalanceBefore,
			&txn.BalanceAfter,
			&txn.PointsRedeemed,
			&txn.PointsEarned,
			&txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		txn.RideID = rideID.String
		txns = append(txns, &txn)
	}
	return txns, rows.Err()
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)
