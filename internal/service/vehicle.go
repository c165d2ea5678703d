package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"evride/internal/domain"
	"evride/internal/fare"
	"evride/internal/repository"
)

const (
	defaultNearbyRadiusKm = 5.0
	maxNearbyRadiusKm     = 50.0
	defaultVehicleRangeKm = 50.0
	maxEstimateDistanceKm = 1000
)

// VehicleService handles fleet provisioning, vehicle lookups and fare quotes.
type VehicleService struct {
	deps       Dependencies
	pricing    fare.Config
	minBattery float64
	index      vehicleIndex
	now        func() time.Time
}

// NewVehicleService creates a new VehicleService. Vehicles below minBattery
// are hidden from nearby searches.
func NewVehicleService(deps Dependencies, pricing fare.Config, minBattery float64) *VehicleService {
	return &VehicleService{
		deps:       deps,
		pricing:    pricing,
		minBattery: minBattery,
		index:      deps.index(),
		now:        deps.clock(),
	}
}

// CreateVehicleRequest contains the parameters for provisioning a vehicle.
type CreateVehicleRequest struct {
	Number   string
	Type     domain.VehicleType
	Brand    string
	Model    string
	Battery  float64
	RangeKm  float64
	Location domain.Location
}

// Create provisions a new available vehicle.
func (s *VehicleService) Create(ctx context.Context, req CreateVehicleRequest) (*domain.Vehicle, error) {
	req.Number = strings.ToUpper(strings.TrimSpace(req.Number))
	if req.Number == "" {
		return nil, newError(ErrValidation, "vehicle number is required")
	}
	if !req.Type.Valid() {
		return nil, newError(ErrValidation, "vehicle type must be scooter, bike or ev")
	}
	if req.Battery < 0 || req.Battery > 100 {
		return nil, newError(ErrValidation, "battery must be between 0 and 100")
	}
	if !req.Location.Valid() {
		return nil, newError(ErrValidation, "invalid location")
	}
	if req.RangeKm <= 0 {
		req.RangeKm = defaultVehicleRangeKm
	}

	now := s.now()
	vehicle := &domain.Vehicle{
		ID:        uuid.New().String(),
		Number:    req.Number,
		Type:      req.Type,
		Brand:     req.Brand,
		Model:     req.Model,
		Battery:   req.Battery,
		RangeKm:   req.RangeKm,
		Status:    domain.VehicleStatusAvailable,
		Location:  req.Location,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Store.Vehicles().Create(ctx, vehicle); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(ErrInvalidState, "vehicle %s already exists", req.Number)
		}
		return nil, err
	}

	s.index.refresh(ctx, vehicle)
	s.deps.Log.Info().Str("vehicle_id", vehicle.ID).Str("number", vehicle.Number).Msg("vehicle provisioned")
	return vehicle, nil
}

// Get returns a vehicle, from cache when possible.
func (s *VehicleService) Get(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	if s.deps.Cache != nil {
		cached, err := s.deps.Cache.GetVehicle(ctx, vehicleID)
		if err != nil {
			s.deps.Log.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("read vehicle cache")
		} else if cached != nil {
			return cached, nil
		}
	}

	vehicle, err := s.deps.Store.Vehicles().GetByID(ctx, vehicleID)
	if err != nil {
		return nil, notFound(err, "vehicle")
	}

	if s.deps.Cache != nil && !s.writeInFlight(ctx, vehicleID) {
		_ = s.deps.Cache.SetVehicle(ctx, vehicle)
	}
	return vehicle, nil
}

// writeInFlight reports whether a lifecycle operation holds the vehicle lock.
// What was just read may be about to change, so it is not cached. A write
// that completes between the read and this check can still be cached;
// VehicleCacheTTL bounds that.
func (s *VehicleService) writeInFlight(ctx context.Context, vehicleID string) bool {
	if s.deps.Locks == nil {
		return false
	}
	locked, err := s.deps.Locks.IsVehicleLocked(ctx, vehicleID)
	if err != nil {
		s.deps.Log.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("check vehicle lock")
		return true
	}
	return locked
}

// List returns vehicles matching the filter. It always reads the database.
func (s *VehicleService) List(ctx context.Context, filter repository.VehicleFilter) ([]*domain.Vehicle, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, newError(ErrValidation, "unknown vehicle status %q", st)
		}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, newError(ErrValidation, "unknown vehicle type %q", filter.Type)
	}
	return s.deps.Store.Vehicles().List(ctx, filter)
}

// NearbyQuery selects vehicles around a point.
type NearbyQuery struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// NearbyVehicle is a vehicle with its distance from the query point.
type NearbyVehicle struct {
	Vehicle    *domain.Vehicle
	DistanceKm float64
}

// Nearby returns active vehicles that are available or reserved and charged
// enough to reserve, nearest first.
func (s *VehicleService) Nearby(ctx context.Context, q NearbyQuery) ([]NearbyVehicle, error) {
	origin := domain.Location{Lat: q.Lat, Lng: q.Lng}
	if !origin.Valid() {
		return nil, newError(ErrValidation, "invalid location")
	}
	if q.RadiusKm <= 0 {
		q.RadiusKm = defaultNearbyRadiusKm
	}
	if q.RadiusKm > maxNearbyRadiusKm {
		return nil, newError(ErrValidation, "radius cannot exceed %.0f km", maxNearbyRadiusKm)
	}

	var (
		candidates []*domain.Vehicle
		err        error
	)
	if s.deps.Locations != nil {
		candidates, err = s.nearbyFromIndex(ctx, q)
	} else {
		candidates, err = s.deps.Store.Vehicles().List(ctx, repository.VehicleFilter{
			Statuses:   []domain.VehicleStatus{domain.VehicleStatusAvailable, domain.VehicleStatusReserved},
			MinBattery: s.minBattery,
			ActiveOnly: true,
		})
	}
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyVehicle, 0, len(candidates))
	for _, v := range candidates {
		if !v.IsActive || v.Battery < s.minBattery {
			continue
		}
		if v.Status != domain.VehicleStatusAvailable && v.Status != domain.VehicleStatusReserved {
			continue
		}
		d := fare.DistanceKm(origin, v.Location)
		if d > q.RadiusKm {
			continue
		}
		nearby = append(nearby, NearbyVehicle{Vehicle: v, DistanceKm: d})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}

// nearbyFromIndex resolves the geo index hits through the vehicle cache,
// loading misses from the database and caching them.
func (s *VehicleService) nearbyFromIndex(ctx context.Context, q NearbyQuery) ([]*domain.Vehicle, error) {
	hits, err := s.deps.Locations.FindNearbyVehicles(ctx, q.Lat, q.Lng, q.RadiusKm)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.VehicleID
	}

	found := make(map[string]*domain.Vehicle, len(ids))
	missing := ids
	if s.deps.Cache != nil {
		cached, miss, err := s.deps.Cache.GetVehiclesBatch(ctx, ids)
		if err != nil {
			s.deps.Log.Warn().Err(err).Msg("read vehicle cache batch")
		} else {
			found, missing = cached, miss
		}
	}

	if len(missing) > 0 {
		loaded, err := s.deps.Store.Vehicles().GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, v := range loaded {
			found[v.ID] = v
		}
		if s.deps.Cache != nil {
			_ = s.deps.Cache.SetVehiclesBatch(ctx, loaded)
		}
	}

	vehicles := make([]*domain.Vehicle, 0, len(ids))
	for _, id := range ids {
		if v, ok := found[id]; ok {
			vehicles = append(vehicles, v)
		}
	}
	return vehicles, nil
}

// EstimateTrip quotes a ride between two points.
func (s *VehicleService) EstimateTrip(from, to domain.Location) (fare.Estimate, error) {
	if !from.Valid() || !to.Valid() {
		return fare.Estimate{}, newError(ErrValidation, "invalid coordinates")
	}
	return s.pricing.Estimate(fare.DistanceKm(from, to)), nil
}

// EstimateForVehicle quotes a ride on a specific vehicle.
func (s *VehicleService) EstimateForVehicle(ctx context.Context, vehicleID string, from, to domain.Location) (fare.Estimate, error) {
	if _, err := s.Get(ctx, vehicleID); err != nil {
		return fare.Estimate{}, err
	}
	return s.EstimateTrip(from, to)
}

// EstimateDistance quotes a ride of a known distance.
func (s *VehicleService) EstimateDistance(distanceKm float64) (fare.Estimate, error) {
	switch {
	case math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0):
		return fare.Estimate{}, newError(ErrValidation, "distance must be a finite number")
	case distanceKm < 0:
		return fare.Estimate{}, newError(ErrValidation, "distance must not be negative")
	case distanceKm > maxEstimateDistanceKm:
		return fare.Estimate{}, newError(ErrValidation, "distance cannot exceed %d km", maxEstimateDistanceKm)
	}
	return s.pricing.Estimate(distanceKm), nil
}
