package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cuscatlan-service/internal/domain/subscription"
	"cuscatlan-service/internal/pkg/jwt"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type AppConfig struct {
	// Server
	HTTPAddr           string
	LogLevel           string
	CORSAllowedOrigins []string
	ContentDir         string

	// Storage
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	DatabaseURL  string
	StoreBackend string

	// JWT
	JWT jwt.Config

	// Subscriptions
	LifetimePrice float64
	Policy        subscription.Policy

	// Bootstrap admin
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		ContentDir:         getEnv("CONTENT_DIR", "./content/premium"),

		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		RedisDB:      getEnvInt("REDIS_DB", 0),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreRedis)),

		JWT: jwt.Config{
			PrivPath: getEnv("JWT_PRIVATE_KEY_PATH", "/app/secrets/jwt_private.pem"),
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   getEnv("JWT_ISSUER", "cuscatlan-app"),
			Audience: getEnv("JWT_AUDIENCE", "cuscatlan-users"),
			TTL:      getEnvDuration("JWT_TTL", 720*time.Hour),
			KID:      getEnv("JWT_KID", "cuscatlan-key"),
		},

		LifetimePrice: getEnvFloat("LIFETIME_PRICE", 49.99),
		Policy: subscription.Policy{
			AllowTrialRestart: getEnvBool("ALLOW_TRIAL_RESTART", false),
			DedupePayments:    getEnvBool("DEDUPE_PAYMENTS", true),
			Currency:          strings.ToUpper(getEnv("SUBSCRIPTION_CURRENCY", "USD")),
			PaymentMethod:     getEnv("PAYMENT_METHOD", "stripe"),
		},

		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", ""),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),
		SuperAdminName:     getEnv("SUPER_ADMIN_NAME", "Administrador"),
	}
}

// Validate rejects settings the server cannot start with.
func (c AppConfig) Validate() error {
	switch c.StoreBackend {
	case StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.LifetimePrice <= 0 {
		return fmt.Errorf("LIFETIME_PRICE must be positive, got %v", c.LifetimePrice)
	}
	if len(c.Policy.Currency) != 3 {
		return fmt.Errorf("SUBSCRIPTION_CURRENCY must be a 3-letter code, got %q", c.Policy.Currency)
	}
	if c.Policy.PaymentMethod == "" {
		return fmt.Errorf("PAYMENT_METHOD must not be empty")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
