package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"evride/internal/app"
	"evride/internal/auth"
	"evride/internal/config"
	"evride/internal/events"
	"evride/internal/handler"
	"evride/internal/logger"
	"evride/internal/metrics"
	internalRedis "evride/internal/redis"
	"evride/internal/repository"
	"evride/internal/repository/memory"
	"evride/internal/repository/postgres"
	"evride/internal/service"
)

func main() {
	log := logger.New("server")

	// Load configuration.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize New Relic")
		} else {
			log.Info().Str("app", cfg.NewRelic.AppName).Msg("New Relic enabled")
		}
	}

	store, closeStore, err := openStore(ctx, cfg, nrApp, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ride store")
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, logger.New("events"))
		if err := kafka.EnsureTopics(ctx, events.TopicRideNotifications); err != nil {
			log.Warn().Err(err).Msg("failed to ensure kafka topics")
		}
		publisher = kafka
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	provider, err := auth.NewProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token provider")
	}

	notifications := service.NewNotificationService(publisher, logger.New("notifications"))

	deps := service.Dependencies{
		Store:         store,
		Notifications: notifications,
		Metrics:       m,
		Log:           logger.New("service"),
	}
	if redisClient != nil {
		deps.Locks = internalRedis.NewLockStore(redisClient)
		deps.Locations = internalRedis.NewLocationStore(redisClient)
		deps.Cache = internalRedis.NewCacheStore(redisClient)
	}

	server, sweeper := wireServer(cfg, deps, redisClient, nrApp, provider, registry, log)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx)
	}()

	// Start server in goroutine.
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	stopSweeper()
	<-sweepDone
	notifications.Close()

	log.Info().Msg("server exited")
}

// openStore returns the configured ride store and a func that releases it.
func openStore(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, log zerolog.Logger) (repository.Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	log.Info().Str("db", cfg.Database.DBName).Msg("connected to PostgreSQL")
	return postgres.NewStore(db), func() { _ = db.Close() }, nil
}

// wireServer wires all dependencies and returns the HTTP server and the
// reservation sweeper.
func wireServer(
	cfg *config.Config,
	deps service.Dependencies,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	provider *auth.Provider,
	gatherer prometheus.Gatherer,
	log zerolog.Logger,
) (*http.Server, *service.ReservationSweeper) {
	pricing := cfg.Pricing.FareConfig()

	// Initialize services.
	reservationService := service.NewReservationService(deps, service.ReservationConfig{
		Timeout:    cfg.Reservation.Timeout,
		MinBattery: cfg.Reservation.MinBattery,
		LockTTL:    cfg.Reservation.LockTTL,
	})
	receiptService := service.NewReceiptService()
	ledger := service.NewLedger(cfg.Wallet.CashbackRate)
	rideService := service.NewRideService(deps, pricing, ledger, reservationService, receiptService)
	vehicleService := service.NewVehicleService(deps, pricing, cfg.Reservation.MinBattery)
	userService := service.NewUserService(deps)
	walletService := service.NewWalletService(deps, service.NewMockPSP(), cfg.Wallet.MaxTopUp)
	sweeper := service.NewReservationSweeper(reservationService, cfg.Reservation.SweepInterval, logger.New("sweeper"))

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService, receiptService),
		VehicleHandler: handler.NewVehicleHandler(vehicleService, reservationService),
		UserHandler:    handler.NewUserHandler(userService, walletService),
		Auth:           provider,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Gatherer:       gatherer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            logger.New("http"),
	})

	log.Info().
		Dur("reservation_timeout", cfg.Reservation.Timeout).
		Float64("min_battery", cfg.Reservation.MinBattery).
		Bool("redis", redisClient != nil).
		Msg("services wired")

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sweeper
}
