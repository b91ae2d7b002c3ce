package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only acceptable outside production
const DefaultJWTSecret = "food_marketplace_super_secret_2024"

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Pricing   PricingConfig
	Tracking  TrackingConfig
	Payment   PaymentConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
}

type DatabaseConfig struct {
	Driver       string // sqlite, postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// RedisConfig is optional; an empty Addr disables notifications and the retry queue
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type PricingConfig struct {
	CommissionRate float64 // percent
	DeliveryFee    float64
}

type TrackingConfig struct {
	PollInterval time.Duration
	InitialETA   time.Duration
	DispatchETA  time.Duration
}

type PaymentConfig struct {
	Enabled   bool
	KeyID     string
	KeySecret string
	Currency  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	AuthPerMinute int
}

type WorkerConfig struct {
	Concurrency int
}

// Load reads configuration from the environment. Callers load .env files beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Food Marketplace API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			DSN:          getEnv("DB_DSN", "food_marketplace.db"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", DefaultJWTSecret),
			TokenTTL: getEnvDuration("JWT_TTL", 7*24*time.Hour),
			Issuer:   getEnv("JWT_ISSUER", "food-marketplace-api"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Pricing: PricingConfig{
			CommissionRate: getEnvFloat("COMMISSION_RATE", 12),
			DeliveryFee:    getEnvFloat("DELIVERY_FEE", 0),
		},
		Tracking: TrackingConfig{
			PollInterval: getEnvDuration("TRACKING_POLL_INTERVAL", 5*time.Second),
			InitialETA:   getEnvDuration("TRACKING_INITIAL_ETA", 40*time.Minute),
			DispatchETA:  getEnvDuration("TRACKING_DISPATCH_ETA", 20*time.Minute),
		},
		Payment: PaymentConfig{
			Enabled:   getEnvBool("PAYMENT_ENABLED", false),
			KeyID:     getEnv("PAYMENT_KEY_ID", ""),
			KeySecret: getEnv("PAYMENT_KEY_SECRET", ""),
			Currency:  getEnv("PAYMENT_CURRENCY", "INR"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 30),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server must not start with
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return errors.New("PORT is required")
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}
	if c.JWT.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Pricing.CommissionRate < 0 || c.Pricing.CommissionRate > 100 {
		return errors.New("COMMISSION_RATE must be between 0 and 100")
	}
	if c.Pricing.DeliveryFee < 0 {
		return errors.New("DELIVERY_FEE must not be negative")
	}
	if c.Tracking.PollInterval <= 0 {
		return errors.New("TRACKING_POLL_INTERVAL must be positive")
	}
	if c.Payment.Enabled && c.Payment.KeySecret == "" {
		return errors.New("PAYMENT_KEY_SECRET is required when payments are enabled")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.App.Environment == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
