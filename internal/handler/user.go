package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"evride/internal/domain"
	"evride/internal/service"
)

// UserHandler handles HTTP requests for user profiles and wallets.
type UserHandler struct {
	userService   *service.UserService
	walletService *service.WalletService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, walletService *service.WalletService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		walletService: walletService,
	}
}

// RegisterUserRequest is the HTTP request body for creating a profile.
type RegisterUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
}

// TopUpRequest is the HTTP request body for adding wallet funds.
type TopUpRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// UserResponse is the HTTP representation of a user profile.
type UserResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Role            string    `json:"role"`
	RewardPoints    int       `json:"reward_points"`
	WalletBalance   float64   `json:"wallet_balance"`
	TotalRides      int       `json:"total_rides"`
	TotalDistanceKm float64   `json:"total_distance_km"`
	CarbonSavedKg   float64   `json:"carbon_saved_kg"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionResponse is one wallet ledger entry.
type TransactionResponse struct {
	ID             string    `json:"id"`
	RideID         string    `json:"ride_id,omitempty"`
	Type           string    `json:"type"`
	Amount         float64   `json:"amount"`
	BalanceBefore  float64   `json:"balance_before"`
	BalanceAfter   float64   `json:"balance_after"`
	PointsRedeemed int       `json:"points_redeemed,omitempty"`
	PointsEarned   int       `json:"points_earned,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            string(u.Role),
		RewardPoints:    u.RewardPoints,
		WalletBalance:   u.WalletBalance,
		TotalRides:      u.TotalRides,
		TotalDistanceKm: u.TotalDistanceKm,
		CarbonSavedKg:   u.CarbonSavedKg,
		CreatedAt:       u.CreatedAt,
	}
}

func toTransactionResponse(t *domain.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:             t.ID,
		RideID:         t.RideID,
		Type:           string(t.Type),
		Amount:         t.Amount,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		PointsRedeemed: t.PointsRedeemed,
		PointsEarned:   t.PointsEarned,
		CreatedAt:      t.CreatedAt,
	}
}

// Register handles POST /v1/users
func (h *UserHandler) Register(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	user, err := h.userService.Register(c.Request.Context(), service.RegisterUserRequest{
		UserID: identity.UserID,
		Name:   req.Name,
		Email:  req.Email,
		Role:   identity.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toUserResponse(user))
}

// GetProfile handles GET /v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	user, err := h.userService.Profile(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// GetWallet handles GET /v1/users/wallet
func (h *UserHandler) GetWallet(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	balance, err := h.walletService.Balance(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"wallet_balance": balance.WalletBalance,
		"reward_points":  balance.RewardPoints,
	})
}

// TopUp handles POST /v1/users/wallet/topup
func (h *UserHandler) TopUp(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "amount is required")
		return
	}

	result, err := h.walletService.TopUp(c.Request.Context(), identity.UserID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"wallet_balance": result.WalletBalance,
		"amount_added":   result.AmountAdded,
		"transaction":    toTransactionResponse(result.Transaction),
	})
}

// GetTransactions handles GET /v1/users/wallet/transactions
func (h *UserHandler) GetTransactions(c *gin.Context) {
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

	txns, err := h.walletService.Transactions(c.Request.Context(), identity.UserID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	respondJSON(c, http.StatusOK, gin.H{"transactions": out, "page": page})
}
