package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"evride/internal/domain"
	"evride/internal/fare"
	"evride/internal/repository"
	"evride/internal/service"
)

const defaultNearbyRadiusKm = 5

// VehicleHandler handles HTTP requests for vehicles and fare quotes.
type VehicleHandler struct {
	vehicleService     *service.VehicleService
	reservationService *service.ReservationService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(vehicleService *service.VehicleService, reservationService *service.ReservationService) *VehicleHandler {
	return &VehicleHandler{
		vehicleService:     vehicleService,
		reservationService: reservationService,
	}
}

// CreateVehicleRequest is the HTTP request body for registering a vehicle.
type CreateVehicleRequest struct {
	Number   string       `json:"vehicle_number" binding:"required"`
	Type     string       `json:"type" binding:"required"`
	Brand    string       `json:"brand"`
	Model    string       `json:"model"`
	Battery  *float64     `json:"battery_level" binding:"required"`
	RangeKm  float64      `json:"range_km"`
	Location PointRequest `json:"location"`
}

// EstimateRequest is the HTTP request body for a trip quote.
type EstimateRequest struct {
	UserLat        *float64 `json:"user_lat" binding:"required"`
	UserLng        *float64 `json:"user_lng" binding:"required"`
	DestinationLat *float64 `json:"destination_lat" binding:"required"`
	DestinationLng *float64 `json:"destination_lng" binding:"required"`
}

// VehicleResponse is the HTTP representation of a vehicle.
type VehicleResponse struct {
	ID               string           `json:"id"`
	Number           string           `json:"vehicle_number"`
	Type             string           `json:"type"`
	Brand            string           `json:"brand,omitempty"`
	Model            string           `json:"model,omitempty"`
	Battery          float64          `json:"battery_level"`
	RangeKm          float64          `json:"range_km"`
	RemainingRangeKm float64          `json:"remaining_range_km"`
	Status           string           `json:"status"`
	Location         LocationResponse `json:"location"`
	TotalKmTraveled  float64          `json:"total_km_traveled"`
	IsActive         bool             `json:"is_active"`
}

// NearbyVehicleResponse is a vehicle with its distance from the caller.
type NearbyVehicleResponse struct {
	VehicleResponse
	DistanceKm float64 `json:"distance_km"`
}

// ReserveResponse is the HTTP response for reserving a vehicle.
type ReserveResponse struct {
	Ride      RideResponse    `json:"ride"`
	Vehicle   VehicleResponse `json:"vehicle"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// EstimateResponse is a pre-ride quote.
type EstimateResponse struct {
	DistanceKm               float64 `json:"distance_km"`
	BaseFare                 float64 `json:"base_fare"`
	DistanceCharge           float64 `json:"distance_charge"`
	TimeCharge               float64 `json:"time_charge"`
	EstimatedTotal           float64 `json:"estimated_total"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	EstimatedCarbonSavedKg   float64 `json:"estimated_carbon_saved_kg"`
}

func toVehicleResponse(v *domain.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:               v.ID,
		Number:           v.Number,
		Type:             string(v.Type),
		Brand:            v.Brand,
		Model:            v.Model,
		Battery:          v.Battery,
		RangeKm:          v.RangeKm,
		RemainingRangeKm: fare.Round2(v.RemainingRangeKm()),
		Status:           string(v.Status),
		Location:         LocationResponse{Lat: v.Location.Lat, Lng: v.Location.Lng, Address: v.Location.Address},
		TotalKmTraveled:  v.TotalKmTraveled,
		IsActive:         v.IsActive,
	}
}

func toEstimateResponse(e fare.Estimate) EstimateResponse {
	return EstimateResponse{
		DistanceKm:               e.DistanceKm,
		BaseFare:                 e.BaseFare,
		DistanceCharge:           e.DistanceCharge,
		TimeCharge:               e.TimeCharge,
		EstimatedTotal:           e.EstimatedTotal,
		EstimatedDurationMinutes: e.EstimatedDurationMinutes,
		EstimatedCarbonSavedKg:   e.EstimatedCarbonSavedKg,
	}
}

// Nearby handles GET /v1/vehicles/nearby
func (h *VehicleHandler) Nearby(c *gin.Context) {
	lat, ok := queryFloat(c, "lat", 0, true)
	if !ok {
		return
	}
	lng, ok := queryFloat(c, "lng", 0, true)
	if !ok {
		return
	}
	radius, ok := queryFloat(c, "radius", defaultNearbyRadiusKm, false)
	if !ok {
		return
	}

	found, err := h.vehicleService.Nearby(c.Request.Context(), service.NearbyQuery{
		Lat:      lat,
		Lng:      lng,
		RadiusKm: radius,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	vehicles := make([]NearbyVehicleResponse, 0, len(found))
	for _, n := range found {
		vehicles = append(vehicles, NearbyVehicleResponse{
			VehicleResponse: toVehicleResponse(n.Vehicle),
			DistanceKm:      n.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"vehicles": vehicles, "count": len(vehicles)})
}

// GetVehicle handles GET /v1/vehicles/:id
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.vehicleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toVehicleResponse(vehicle))
}

// Reserve handles POST /v1/vehicles/:id/reserve
func (h *VehicleHandler) Reserve(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	result, err := h.reservationService.Reserve(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ReserveResponse{
		Ride:      toRideResponse(result.Ride),
		Vehicle:   toVehicleResponse(result.Vehicle),
		ExpiresAt: result.ExpiresAt,
	})
}

// Estimate handles POST /v1/vehicles/:id/estimate
func (h *VehicleHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "user_lat, user_lng, destination_lat and destination_lng are required")
		return
	}

	from := domain.Location{Lat: *req.UserLat, Lng: *req.UserLng}
	to := domain.Location{Lat: *req.DestinationLat, Lng: *req.DestinationLng}
	estimate, err := h.vehicleService.EstimateForVehicle(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toEstimateResponse(estimate))
}

// EstimateFare handles GET /v1/fares/estimate
func (h *VehicleHandler) EstimateFare(c *gin.Context) {
	distance, ok := queryFloat(c, "distance_km", 0, true)
	if !ok {
		return
	}

	estimate, err := h.vehicleService.EstimateDistance(distance)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toEstimateResponse(estimate))
}

// Create handles POST /v1/vehicles (admin only)
func (h *VehicleHandler) Create(c *gin.Context) {
	var req CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "vehicle_number, type, battery_level and location are required")
		return
	}

	vehicle, err := h.vehicleService.Create(c.Request.Context(), service.CreateVehicleRequest{
		Number:   req.Number,
		Type:     domain.VehicleType(req.Type),
		Brand:    req.Brand,
		Model:    req.Model,
		Battery:  *req.Battery,
		RangeKm:  req.RangeKm,
		Location: req.Location.location(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toVehicleResponse(vehicle))
}

// List handles GET /v1/vehicles (admin only)
func (h *VehicleHandler) List(c *gin.Context) {
	minBattery, ok := queryFloat(c, "min_battery", 0, false)
	if !ok {
		return
	}

	filter := repository.VehicleFilter{
		Type:       domain.VehicleType(c.Query("type")),
		MinBattery: minBattery,
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.VehicleStatus(strings.TrimSpace(s)))
		}
	}

	found, err := h.vehicleService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	vehicles := make([]VehicleResponse, 0, len(found))
	for _, v := range found {
		vehicles = append(vehicles, toVehicleResponse(v))
	}
	respondJSON(c, http.StatusOK, gin.H{"vehicles": vehicles, "count": len(vehicles)})
}
