package memory

import (
	"context"
	"sort"
	"time"

	"evride/internal/domain"
	"evride/internal/repository"
)

// RideRepository is an in-memory implementation of repository.RideRepository.
//
// Like the rides_one_open_per_user index of the PostgreSQL schema, it rejects
// a write that would leave a user with two open rides.
type RideRepository struct {
	d *dataset
	g guard
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	defer r.g.write()()
	if _, ok := r.d.rides[ride.ID]; ok {
		return repository.ErrConflict
	}
	if ride.IsOpen() && r.hasOtherOpenRide(ride) {
		return repository.ErrConflict
	}
	r.d.rides[ride.ID] = ride.Clone()
	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	defer r.g.read()()
	ride, ok := r.d.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ride.Clone(), nil
}

// GetByIDForUpdate retrieves a ride. Units of work are already serialized.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.GetByID(ctx, id)
}

// FindOpenByUser returns the user's reserved or active ride.
func (r *RideRepository) FindOpenByUser(ctx context.Context, userID string) (*domain.Ride, error) {
	defer r.g.read()()
	for _, ride := range r.d.rides {
		if ride.UserID == userID && ride.IsOpen() {
			return ride.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListByUser returns a page of the user's rides, newest first.
func (r *RideRepository) ListByUser(ctx context.Context, userID string, filter repository.RideFilter) ([]*domain.Ride, int, error) {
	defer r.g.read()()
	var matched []*domain.Ride
	for _, ride := range r.d.rides {
		if ride.UserID != userID {
			continue
		}
		if filter.Status != "" && ride.Status != filter.Status {
			continue
		}
		matched = append(matched, ride)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]*domain.Ride, 0, end-start)
	for _, ride := range matched[start:end] {
		page = append(page, ride.Clone())
	}
	return page, total, nil
}

// ListExpiredReservations returns rides still reserved at or before the cutoff, oldest first.
func (r *RideRepository) ListExpiredReservations(ctx context.Context, reservedBefore time.Time, limit int) ([]*domain.Ride, error) {
	defer r.g.read()()
	var rides []*domain.Ride
	for _, ride := range r.d.rides {
		if ride.Status == domain.RideStatusReserved && !ride.ReservedAt.After(reservedBefore) {
			rides = append(rides, ride.Clone())
		}
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].ReservedAt.Before(rides[j].ReservedAt)
	})
	if limit > 0 && len(rides) > limit {
		rides = rides[:limit]
	}
	return rides, nil
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	defer r.g.write()()
	if _, ok := r.d.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	if ride.IsOpen() && r.hasOtherOpenRide(ride) {
		return repository.ErrConflict
	}
	r.d.rides[ride.ID] = ride.Clone()
	return nil
}

func (r *RideRepository) hasOtherOpenRide(ride *domain.Ride) bool {
	for id, other := range r.d.rides {
		if id != ride.ID && other.UserID == ride.UserID && other.IsOpen() {
			return true
		}
	}
	return false
}

var _ repository.RideRepository = (*RideRepository)(nil)
