package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"evride/internal/domain"
	"evride/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService    *service.RideService
	receiptService *service.ReceiptService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, receiptService *service.ReceiptService) *RideHandler {
	return &RideHandler{
		rideService:    rideService,
		receiptService: receiptService,
	}
}

// PointRequest is a coordinate pair in a request body.
type PointRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Address string   `json:"address,omitempty"`
}

func (p PointRequest) location() domain.Location {
	return domain.Location{Lat: *p.Lat, Lng: *p.Lng, Address: p.Address}
}

// StartRideRequest is the HTTP request body for starting a ride.
type StartRideRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
	PointRequest
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Rating   int    `json:"rating" binding:"required"`
	Feedback string `json:"feedback,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	VehicleID       string            `json:"vehicle_id"`
	Status          string            `json:"status"`
	ReservedAt      *time.Time        `json:"reserved_at,omitempty"`
	StartTime       *time.Time        `json:"start_time,omitempty"`
	EndTime         *time.Time        `json:"end_time,omitempty"`
	StartLocation   *LocationResponse `json:"start_location,omitempty"`
	EndLocation     *LocationResponse `json:"end_location,omitempty"`
	DistanceKm      float64           `json:"distance_km"`
	DurationMinutes int               `json:"duration_minutes"`
	BaseFare        float64           `json:"base_fare"`
	TimeFare        float64           `json:"time_fare"`
	DistanceFare    float64           `json:"distance_fare"`
	OriginalFare    float64           `json:"original_fare"`
	Fare            float64           `json:"fare"`
	CarbonSavedKg   float64           `json:"carbon_saved_kg"`
	PointsEarned    int               `json:"points_earned"`
	PointsRedeemed  int               `json:"points_redeemed"`
	IsPaid          bool              `json:"is_paid"`
	PaymentMethod   string            `json:"payment_method"`
	Rating          int               `json:"rating,omitempty"`
	Feedback        string            `json:"feedback,omitempty"`
	CancelReason    string            `json:"cancel_reason,omitempty"`
}

// PaymentSummaryResponse is shown to the rider when a ride ends.
type PaymentSummaryResponse struct {
	DurationMinutes int     `json:"duration_minutes"`
	DistanceKm      float64 `json:"distance_km"`
	OriginalFare    float64 `json:"original_fare"`
	PointsRedeemed  int     `json:"points_redeemed"`
	FinalFare       float64 `json:"final_fare"`
	CarbonSavedKg   float64 `json:"carbon_saved_kg"`
	PointsEarned    int     `json:"points_earned"`
	TotalPoints     int     `json:"total_points"`
	WalletBalance   float64 `json:"wallet_balance"`
}

// EndRideResponse is the HTTP response for ending a ride.
type EndRideResponse struct {
	Ride    RideResponse           `json:"ride"`
	Vehicle VehicleResponse        `json:"vehicle"`
	Payment PaymentSummaryResponse `json:"payment"`
}

// RideHistoryResponse is one page of ride history.
type RideHistoryResponse struct {
	Rides []RideResponse `json:"rides"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// ReceiptResponse is the invoice of a completed ride.
type ReceiptResponse struct {
	ID              string           `json:"id"`
	RideID          string           `json:"ride_id"`
	VehicleNumber   string           `json:"vehicle_number,omitempty"`
	VehicleType     string           `json:"vehicle_type,omitempty"`
	StartLocation   LocationResponse `json:"start_location"`
	EndLocation     LocationResponse `json:"end_location"`
	DurationMinutes int              `json:"duration_minutes"`
	DistanceKm      float64          `json:"distance_km"`
	BaseFare        float64          `json:"base_fare"`
	TimeFare        float64          `json:"time_fare"`
	DistanceFare    float64          `json:"distance_fare"`
	OriginalFare    float64          `json:"original_fare"`
	PointsRedeemed  int              `json:"points_redeemed"`
	FinalFare       float64          `json:"final_fare"`
	PointsEarned    int              `json:"points_earned"`
	CarbonSavedKg   float64          `json:"carbon_saved_kg"`
	PaymentMethod   string           `json:"payment_method"`
	StartedAt       time.Time        `json:"started_at"`
	EndedAt         time.Time        `json:"ended_at"`
	Text            string           `json:"text"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		VehicleID:       r.VehicleID,
		Status:          string(r.Status),
		ReservedAt:      timePtr(r.ReservedAt),
		StartTime:       timePtr(r.StartTime),
		EndTime:         timePtr(r.EndTime),
		StartLocation:   toLocationResponse(r.StartLocation),
		EndLocation:     toLocationResponse(r.EndLocation),
		DistanceKm:      r.DistanceKm,
		DurationMinutes: r.DurationMinutes,
		BaseFare:        r.BaseFare,
		TimeFare:        r.TimeFare,
		DistanceFare:    r.DistanceFare,
		OriginalFare:    r.OriginalFare,
		Fare:            r.Fare,
		CarbonSavedKg:   r.CarbonSavedKg,
		PointsEarned:    r.PointsEarned,
		PointsRedeemed:  r.PointsRedeemed,
		IsPaid:          r.IsPaid,
		PaymentMethod:   string(r.PaymentMethod),
		Rating:          r.Rating,
		Feedback:        r.Feedback,
		CancelReason:    r.CancelReason,
	}
}

// StartRide handles POST /v1/rides/start
func (h *RideHandler) StartRide(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req StartRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "vehicle_id, lat and lng are required")
		return
	}

	result, err := h.rideService.Start(c.Request.Context(), service.StartRideRequest{
		UserID:    identity.UserID,
		VehicleID: req.VehicleID,
		Location:  req.location(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"ride":    toRideResponse(result.Ride),
		"vehicle": toVehicleResponse(result.Vehicle),
	})
}

// EndRide handles POST /v1/rides/:id/end
func (h *RideHandler) EndRide(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "lat and lng are required")
		return
	}

	result, err := h.rideService.End(c.Request.Context(), service.EndRideRequest{
		RideID:   c.Param("id"),
		UserID:   identity.UserID,
		Location: req.location(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	s := result.Summary
	respondJSON(c, http.StatusOK, EndRideResponse{
		Ride:    toRideResponse(result.Ride),
		Vehicle: toVehicleResponse(result.Vehicle),
		Payment: PaymentSummaryResponse{
			DurationMinutes: s.DurationMinutes,
			DistanceKm:      s.DistanceKm,
			OriginalFare:    s.OriginalFare,
			PointsRedeemed:  s.PointsRedeemed,
			FinalFare:       s.FinalFare,
			CarbonSavedKg:   s.CarbonSavedKg,
			PointsEarned:    s.PointsEarned,
			TotalPoints:     s.TotalPoints,
			WalletBalance:   s.WalletBalance,
		},
	})
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	ride, err := h.rideService.Cancel(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// RateRide handles POST /v1/rides/:id/rate
func (h *RideHandler) RateRide(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "rating is required")
		return
	}

	ride, err := h.rideService.Rate(c.Request.Context(), service.RateRideRequest{
		RideID:   c.Param("id"),
		UserID:   identity.UserID,
		Rating:   req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	ride, err := h.rideService.Get(c.Request.Context(), c.Param("id"), requester(identity))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetActiveRide handles GET /v1/rides/active
func (h *RideHandler) GetActiveRide(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	ride, err := h.rideService.Active(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetHistory handles GET /v1/rides
func (h *RideHandler) GetHistory(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	result, err := h.rideService.History(c.Request.Context(), identity.UserID, service.HistoryQuery{
		Status: domain.RideStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	rides := make([]RideResponse, 0, len(result.Rides))
	for _, r := range result.Rides {
		rides = append(rides, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, RideHistoryResponse{
		Rides: rides,
		Total: result.Total,
		Page:  result.Page,
		Pages: result.Pages,
	})
}

// GetReceipt handles GET /v1/rides/:id/receipt
func (h *RideHandler) GetReceipt(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	receipt, err := h.rideService.Receipt(c.Request.Context(), c.Param("id"), requester(identity))
	if err != nil {
		respondError(c, err)
		return
	}

	text := h.receiptService.FormatReceipt(receipt)
	if c.GetHeader("Accept") == "text/plain" {
		c.String(http.StatusOK, text)
		return
	}

	respondJSON(c, http.StatusOK, ReceiptResponse{
		ID:              receipt.ID,
		RideID:          receipt.RideID,
		VehicleNumber:   receipt.VehicleNumber,
		VehicleType:     string(receipt.VehicleType),
		StartLocation:   LocationResponse{Lat: receipt.StartLocation.Lat, Lng: receipt.StartLocation.Lng, Address: receipt.StartLocation.Address},
		EndLocation:     LocationResponse{Lat: receipt.EndLocation.Lat, Lng: receipt.EndLocation.Lng, Address: receipt.EndLocation.Address},
		DurationMinutes: receipt.DurationMinutes,
		DistanceKm:      receipt.DistanceKm,
		BaseFare:        receipt.BaseFare,
		TimeFare:        receipt.TimeFare,
		DistanceFare:    receipt.DistanceFare,
		OriginalFare:    receipt.OriginalFare,
		PointsRedeemed:  receipt.PointsRedeemed,
		FinalFare:       receipt.FinalFare,
		PointsEarned:    receipt.PointsEarned,
		CarbonSavedKg:   receipt.CarbonSavedKg,
		PaymentMethod:   string(receipt.PaymentMethod),
		StartedAt:       receipt.StartedAt,
		EndedAt:         receipt.EndedAt,
		Text:            text,
	})
}
