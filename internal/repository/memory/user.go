package memory

import (
	"context"
	"sort"

	"evride/internal/domain"
	"evride/internal/repository"
)

// UserRepository is an in-memory implementation of repository.UserRepository.
type UserRepository struct {
	d *dataset
	g guard
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	defer r.g.write()()
	if _, ok := r.d.users[user.ID]; ok {
		return repository.ErrConflict
	}
	for _, u := range r.d.users {
		if user.Email != "" && u.Email == user.Email {
			return repository.ErrConflict
		}
	}
	r.d.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.g.read()()
	u, ok := r.d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// GetByIDForUpdate retrieves a user. Units of work are already serialized.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

// Update updates an existing user.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	defer r.g.write()()
	if _, ok := r.d.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	r.d.users[user.ID] = *user
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)

// TransactionRepository is an in-memory implementation of repository.TransactionRepository.
type TransactionRepository struct {
	d *dataset
	g guard
}

// Create appends a ledger entry.
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.WalletTransaction) error {
	defer r.g.write()()
	r.d.txns = append(r.d.txns, *txn)
	return nil
}

// ListByUser returns the user's entries, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.WalletTransaction, error) {
	defer r.g.read()()
	var txns []*domain.WalletTransaction
	for i := len(r.d.txns) - 1; i >= 0; i-- {
		if r.d.txns[i].UserID == userID {
			t := r.d.txns[i]
			txns = append(txns, &t)
		}
	}
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})

	start := min(max(offset, 0), len(txns))
	end := len(txns)
	if limit > 0 {
		end = min(start+limit, len(txns))
	}
	return txns[start:end], nil
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)
