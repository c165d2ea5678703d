package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"evride/internal/domain"
	"evride/internal/handler"
	"evride/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	VehicleHandler *handler.VehicleHandler
	UserHandler    *handler.UserHandler
	Auth           middleware.IdentityProvider
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp), middleware.NoticeErrors())
	}

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var idempotencyStore redis.Cmdable
	if deps.RedisClient != nil {
		idempotencyStore = deps.RedisClient
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Public discovery and quotes.
		v1.GET("/vehicles/nearby", deps.VehicleHandler.Nearby)
		v1.GET("/vehicles/:id", deps.VehicleHandler.GetVehicle)
		v1.POST("/vehicles/:id/estimate", deps.VehicleHandler.Estimate)
		v1.GET("/fares/estimate", deps.VehicleHandler.EstimateFare)

		authed := v1.Group("",
			middleware.Authenticate(deps.Auth),
			middleware.IdempotencyMiddleware(idempotencyStore, deps.Log),
		)

		// User routes.
		users := authed.Group("/users")
		{
			users.POST("", deps.UserHandler.Register)
			users.GET("/me", deps.UserHandler.GetProfile)
			users.GET("/wallet", deps.UserHandler.GetWallet)
			users.POST("/wallet/topup", deps.UserHandler.TopUp)
			users.GET("/wallet/transactions", deps.UserHandler.GetTransactions)
		}

		// Vehicle routes.
		vehicles := authed.Group("/vehicles")
		{
			vehicles.POST("/:id/reserve", deps.VehicleHandler.Reserve)
			vehicles.POST("", middleware.Authorize(domain.UserRoleAdmin), deps.VehicleHandler.Create)
			vehicles.GET("", middleware.Authorize(domain.UserRoleAdmin), deps.VehicleHandler.List)
		}

		// Ride routes.
		rides := authed.Group("/rides")
		{
			rides.POST("/start", deps.RideHandler.StartRide)
			rides.GET("", deps.RideHandler.GetHistory)
			rides.GET("/active", deps.RideHandler.GetActiveRide)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.GET("/:id/receipt", deps.RideHandler.GetReceipt)
			rides.POST("/:id/end", deps.RideHandler.EndRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/rate", deps.RideHandler.RateRide)
		}
	}

	return router
}
