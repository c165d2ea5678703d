package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evride/internal/domain"
	"evride/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, user_id, vehicle_id, status, reserved_at, start_time, end_time,
	start_lat, start_lng, start_address, end_lat, end_lng, end_address,
	distance_km, duration_minutes, base_fare, time_fare, distance_fare, original_fare, fare,
	carbon_saved_kg, points_earned, points_redeemed, is_paid, payment_method,
	rating, feedback, cancel_reason, created_at, updated_at`

// Create persists a new ride. A second open ride for the same user violates
// rides_one_open_per_user and yields repository.ErrConflict.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
	`
	args := append([]any{ride.ID, ride.UserID, ride.VehicleID}, rideValues(ride)...)
	args = append(args, ride.CreatedAt, ride.UpdatedAt)

	_, err := r.q.ExecContext(ctx, query, args...)
	return translateError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

// GetByIDForUpdate retrieves a ride and locks the row.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id)
	return scanRide(row)
}

// FindOpenByUser returns the user's reserved or active ride.
func (r *RideRepository) FindOpenByUser(ctx context.Context, userID string) (*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE user_id = $1 AND status IN ('reserved', 'active')
		LIMIT 1
	`
	return scanRide(r.q.QueryRowContext(ctx, query, userID))
}

// ListByUser returns a page of the user's rides, newest first.
func (r *RideRepository) ListByUser(ctx context.Context, userID string, filter repository.RideFilter) ([]*domain.Ride, int, error) {
	where := `WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + rideColumns + ` FROM rides ` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rides, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rides, total, nil
}

// ListExpiredReservations returns rides still reserved at or before the cutoff, oldest first.
func (r *RideRepository) ListExpiredReservations(ctx context.Context, reservedBefore time.Time, limit int) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE status = 'reserved' AND reserved_at <= $1
		ORDER BY reserved_at
		LIMIT $2
	`
	return r.list(ctx, query, reservedBefore, limit)
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET status = $2, reserved_at = $3, start_time = $4, end_time = $5,
			start_lat = $6, start_lng = $7, start_address = $8,
			end_lat = $9, end_lng = $10, end_address = $11,
			distance_km = $12, duration_minutes = $13, base_fare = $14, time_fare = $15,
			distance_fare = $16, original_fare = $17, fare = $18, carbon_saved_kg = $19,
			points_earned = $20, points_redeemed = $21, is_paid = $22, payment_method = $23,
			rating = $24, feedback = $25, cancel_reason = $26, updated_at = $27
		WHERE id = $1
	`
	args := append([]any{ride.ID}, rideValues(ride)...)
	args = append(args, ride.UpdatedAt)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	return checkAffected(result)
}

// rideValues returns the mutable columns from status through cancel_reason.
func rideValues(ride *domain.Ride) []any {
	var startLat, startLng, endLat, endLng sql.NullFloat64
	var startAddress, endAddress sql.NullString
	if loc := ride.StartLocation; loc != nil {
		startLat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		startLng = sql.NullFloat64{Float64: loc.Lng, Valid: true}
		startAddress = sql.NullString{String: loc.Address, Valid: true}
	}
	if loc := ride.EndLocation; loc != nil {
		endLat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		endLng = sql.NullFloat64{Float64: loc.Lng, Valid: true}
		endAddress = sql.NullString{String: loc.Address, Valid: true}
	}

	paymentMethod := ride.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodWallet
	}

	return []any{
		ride.Status,
		nullTime(ride.ReservedAt),
		nullTime(ride.StartTime),
		nullTime(ride.EndTime),
		startLat, startLng, startAddress,
		endLat, endLng, endAddress,
		ride.DistanceKm,
		ride.DurationMinutes,
		ride.BaseFare,
		ride.TimeFare,
		ride.DistanceFare,
		ride.OriginalFare,
		ride.Fare,
		ride.CarbonSavedKg,
		ride.PointsEarned,
		ride.PointsRedeemed,
		ride.IsPaid,
		paymentMethod,
		ride.Rating,
		nullString(ride.Feedback),
		nullString(ride.CancelReason),
	}
}

func scanRide(row scanner) (*domain.Ride, error) {
	var ride domain.Ride
	var reservedAt, startTime, endTime sql.NullTime
	var startLat, startLng, endLat, endLng sql.NullFloat64
	var startAddress, endAddress, feedback, cancelReason sql.NullString

	err := row.Scan(
		&ride.ID,
		&ride.UserID,
		&ride.VehicleID,
		&ride.Status,
		&reservedAt,
		&startTime,
		&endTime,
		&startLat, &startLng, &startAddress,
		&endLat, &endLng, &endAddress,
		&ride.DistanceKm,
		&ride.DurationMinutes,
		&ride.BaseFare,
		&ride.TimeFare,
		&ride.DistanceFare,
		&ride.OriginalFare,
		&ride.Fare,
		&ride.CarbonSavedKg,
		&ride.PointsEarned,
		&ride.PointsRedeemed,
		&ride.IsPaid,
		&ride.PaymentMethod,
		&ride.Rating,
		&feedback,
		&cancelReason,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	ride.ReservedAt = reservedAt.Time
	ride.StartTime = startTime.Time
	ride.EndTime = endTime.Time
	if startLat.Valid && startLng.Valid {
		ride.StartLocation = &domain.Location{Lat: startLat.Float64, Lng: startLng.Float64, Address: startAddress.String}
	}
	if endLat.Valid && endLng.Valid {
		ride.EndLocation = &domain.Location{Lat: endLat.Float64, Lng: endLng.Float64, Address: endAddress.String}
	}
	ride.Feedback = feedback.String
	ride.CancelReason = cancelReason.String

	return &ride, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ repository.RideRepository = (*RideRepository)(nil)
