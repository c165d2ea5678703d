package postgres

import (
	"context"
	"database/sql"

	"evride/internal/domain"
	"evride/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// NewUserRepositoryWithTx creates a user repository using a transaction.
func NewUserRepositoryWithTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, name, email, role, reward_points, wallet_balance, total_rides,
	total_distance_km, carbon_saved_kg, created_at, updated_at`

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.Name,
		nullString(user.Email),
		user.Role,
		user.RewardPoints,
		user.WalletBalance,
		user.TotalRides,
		user.TotalDistanceKm,
		user.CarbonSavedKg,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translateError(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a user and locks the row.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) get(ctx context.Context, query, id string) (*domain.User, error) {
	var user domain.User
	var email sql.NullString
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&email,
		&user.Role,
		&user.RewardPoints,
		&user.WalletBalance,
		&user.TotalRides,
		&user.TotalDistanceKm,
		&user.CarbonSavedKg,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	user.Email = email.String
	return &user, nil
}

// Update updates an existing user.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $1, email = $2, role = $3, reward_points = $4, wallet_balance = $5,
			total_rides = $6, total_distance_km = $7, carbon_saved_kg = $8, updated_at = $9
		WHERE id = $10
	`
	result, err := r.q.ExecContext(ctx, query,
		user.Name,
		nullString(user.Email),
		user.Role,
		user.RewardPoints,
		user.WalletBalance,
		user.TotalRides,
		user.TotalDistanceKm,
		user.CarbonSavedKg,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return translateError(err)
	}
	return checkAffected(result)
}

var _ repository.UserRepository = (*UserRepository)(nil)
