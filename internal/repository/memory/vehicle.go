package memory

import (
	"context"
	"slices"
	"sort"

	"evride/internal/domain"
	"evride/internal/repository"
)

// VehicleRepository is an in-memory implementation of repository.VehicleRepository.
type VehicleRepository struct {
	d *dataset
	g guard
}

// Create persists a new vehicle.
func (r *VehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	defer r.g.write()()
	if _, ok := r.d.vehicles[vehicle.ID]; ok {
		return repository.ErrConflict
	}
	for _, v := range r.d.vehicles {
		if vehicle.Number != "" && v.Number == vehicle.Number {
			return repository.ErrConflict
		}
	}
	r.d.vehicles[vehicle.ID] = *vehicle
	return nil
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	defer r.g.read()()
	v, ok := r.d.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

// GetByIDForUpdate retrieves a vehicle. Units of work are already serialized.
func (r *VehicleRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Vehicle, error) {
	return r.GetByID(ctx, id)
}

// GetByIDs retrieves the vehicles that exist among ids, in the order given.
func (r *VehicleRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Vehicle, error) {
	defer r.g.read()()
	vehicles := make([]*domain.Vehicle, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.d.vehicles[id]; ok {
			vehicles = append(vehicles, &v)
		}
	}
	return vehicles, nil
}

// List retrieves vehicles matching the filter, ordered by vehicle number.
func (r *VehicleRepository) List(ctx context.Context, filter repository.VehicleFilter) ([]*domain.Vehicle, error) {
	defer r.g.read()()
	var vehicles []*domain.Vehicle
	for _, v := range r.d.vehicles {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, v.Status) {
			continue
		}
		if filter.Type != "" && v.Type != filter.Type {
			continue
		}
		if v.Battery < filter.MinBattery {
			continue
		}
		if filter.ActiveOnly && !v.IsActive {
			continue
		}
		v := v
		vehicles = append(vehicles, &v)
	}
	sort.Slice(vehicles, func(i, j int) bool {
		if vehicles[i].Number != vehicles[j].Number {
			return vehicles[i].Number < vehicles[j].Number
		}
		return vehicles[i].ID < vehicles[j].ID
	})
	return vehicles, nil
}

// Update updates an existing vehicle.
func (r *VehicleRepository) Update(ctx context.Context, vehicle *domain.Vehicle) error {
	defer r.g.write()()
	if _, ok := r.d.vehicles[vehicle.ID]; !ok {
		return repository.ErrNotFound
	}
	r.d.vehicles[vehicle.ID] = *vehicle
	return nil
}

var _ repository.VehicleRepository = (*VehicleRepository)(nil)
