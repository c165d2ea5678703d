package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"evride/internal/domain"
	"evride/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// NewVehicleRepositoryWithTx creates a vehicle repository using a transaction.
func NewVehicleRepositoryWithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{q: tx}
}

const vehicleColumns = `id, vehicle_number, type, brand, model, battery, range_km, status,
	lat, lng, address, current_ride_id, total_km_traveled, is_active, created_at, updated_at`

// Create persists a new vehicle.
func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.q.ExecContext(ctx, query,
		v.ID,
		v.Number,
		v.Type,
		v.Brand,
		v.Model,
		v.Battery,
		v.RangeKm,
		v.Status,
		v.Location.Lat,
		v.Location.Lng,
		v.Location.Address,
		nullString(v.CurrentRideID),
		v.TotalKmTraveled,
		v.IsActive,
		v.CreatedAt,
		v.UpdatedAt,
	)
	return translateError(err)
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	return scanVehicle(row)
}

// GetByIDForUpdate retrieves a vehicle and locks the row.
func (r *VehicleRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Vehicle, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 FOR UPDATE`, id)
	return scanVehicle(row)
}

// GetByIDs retrieves the vehicles that exist among ids.
func (r *VehicleRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Vehicle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ANY($1)`
	return r.list(ctx, query, pq.Array(ids))
}

// List retrieves vehicles matching the filter.
func (r *VehicleRepository) List(ctx context.Context, filter repository.VehicleFilter) ([]*domain.Vehicle, error) {
	var (
		conds []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.MinBattery > 0 {
		args = append(args, filter.MinBattery)
		conds = append(conds, fmt.Sprintf("battery >= $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY vehicle_number"

	return r.list(ctx, query, args...)
}

func (r *VehicleRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Vehicle, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// Update updates an existing vehicle.
func (r *VehicleRepository) Update(ctx context.Context, v *domain.Vehicle) error {
	query := `
		UPDATE vehicles
		SET vehicle_number = $1, type = $2, brand = $3, model = $4, battery = $5, range_km = $6,
			status = $7, lat = $8, lng = $9, address = $10, current_ride_id = $11,
			total_km_traveled = $12, is_active = $13, updated_at = $14
		WHERE id = $15
	`
	result, err := r.q.ExecContext(ctx, query,
		v.Number,
		v.Type,
		v.Brand,
		v.Model,
		v.Battery,
		v.RangeKm,
		v.Status,
		v.Location.Lat,
		v.Location.Lng,
		v.Location.Address,
		nullString(v.CurrentRideID),
		v.TotalKmTraveled,
		v.IsActive,
		v.UpdatedAt,
		v.ID,
	)
	if err != nil {
		return translateError(err)
	}
	return checkAffected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row scanner) (*domain.Vehicle, error) {
	var v domain.Vehicle
	var currentRideID sql.NullString
	err := row.Scan(
		&v.ID,
		&v.Number,
		&v.Type,
		&v.Brand,
		&v.Model,
		&v.Battery,
		&v.RangeKm,
		&v.Status,
		&v.Location.Lat,
		&v.Location.Lng,
		&v.Location.Address,
		&currentRideID,
		&v.TotalKmTraveled,
		&v.IsActive,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	v.CurrentRideID = currentRideID.String
	return &v, nil
}

var _ repository.VehicleRepository = (*VehicleRepository)(nil)
