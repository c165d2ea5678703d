package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"evride/internal/fare"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv      string
	Server      ServerConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NewRelic    NewRelicConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Log         LogConfig
	Pricing     PricingConfig
	Reservation ReservationConfig
	Wallet      WalletConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	Migrate      bool
}

// RedisConfig holds Redis configuration. A zero PoolSize keeps the client
// default of ten connections per CPU.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// KafkaConfig holds the ride notification publisher configuration.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
}

// AuthConfig holds identity provider token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// PricingConfig holds the fare and carbon tariff.
type PricingConfig struct {
	BaseFare          float64
	PerMinuteCharge   float64
	PerKmCharge       float64
	CarbonSavingPerKm float64
	AverageSpeedKmh   float64
}

// FareConfig returns the tariff as a fare.Config.
func (p PricingConfig) FareConfig() fare.Config {
	return fare.Config{
		BaseFare:          p.BaseFare,
		PerMinuteCharge:   p.PerMinuteCharge,
		PerKmCharge:       p.PerKmCharge,
		CarbonSavingPerKm: p.CarbonSavingPerKm,
		AverageSpeedKmh:   p.AverageSpeedKmh,
	}
}

// ReservationConfig holds reservation rules.
type ReservationConfig struct {
	Timeout       time.Duration
	MinBattery    float64
	LockTTL       time.Duration
	SweepInterval time.Duration
}

// WalletConfig holds wallet and reward settings.
type WalletConfig struct {
	MaxTopUp     float64
	CashbackRate float64
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first; variables already set take precedence.
func Load() *Config {
	_ = godotenv.Load()

	defaults := fare.DefaultConfig()

	return &Config{
		AppEnv: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "evride"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 50),
			Migrate:      getBoolEnv("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:      getBoolEnv("REDIS_ENABLED", true),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 0),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", time.Second),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "evride-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
			Brokers: getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			TokenTTL:  getDurationEnv("JWT_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Pricing: PricingConfig{
			BaseFare:          getFloatEnv("BASE_FARE", defaults.BaseFare),
			PerMinuteCharge:   getFloatEnv("PER_MINUTE_CHARGE", defaults.PerMinuteCharge),
			PerKmCharge:       getFloatEnv("PER_KM_CHARGE", defaults.PerKmCharge),
			CarbonSavingPerKm: getFloatEnv("CARBON_SAVING_PER_KM", defaults.CarbonSavingPerKm),
			AverageSpeedKmh:   getFloatEnv("AVERAGE_SPEED_KMH", defaults.AverageSpeedKmh),
		},
		Reservation: ReservationConfig{
			Timeout:       getMinutesEnv("RESERVATION_TIMEOUT", 5*time.Minute),
			MinBattery:    getFloatEnv("MIN_BATTERY_FOR_RESERVE", 20),
			LockTTL:       getDurationEnv("VEHICLE_LOCK_TTL", 10*time.Second),
			SweepInterval: getDurationEnv("RESERVATION_SWEEP_INTERVAL", 30*time.Second),
		},
		Wallet: WalletConfig{
			MaxTopUp:     getFloatEnv("MAX_WALLET_TOPUP", 10000),
			CashbackRate: getFloatEnv("CASHBACK_RATE", 0.10),
		},
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Storage.Driver != "postgres" && c.Storage.Driver != "memory" {
		errs = append(errs, errors.New("STORAGE_DRIVER must be postgres or memory"))
	}
	if c.Reservation.Timeout <= 0 {
		errs = append(errs, errors.New("RESERVATION_TIMEOUT must be positive"))
	}
	if c.Pricing.AverageSpeedKmh <= 0 {
		errs = append(errs, errors.New("AVERAGE_SPEED_KMH must be positive"))
	}
	if c.Wallet.CashbackRate < 0 || c.Wallet.CashbackRate > 1 {
		errs = append(errs, errors.New("CASHBACK_RATE must be between 0 and 1"))
	}
	if c.Redis.PoolSize < 0 || c.Redis.MinIdleConns < 0 {
		errs = append(errs, errors.New("REDIS_POOL_SIZE and REDIS_MIN_IDLE_CONNS must not be negative"))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the application runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getMinutesEnv reads a duration, treating a bare number as minutes.
func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(minutes * float64(time.Minute))
		}
	}
	return getDurationEnv(key, defaultValue)
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
