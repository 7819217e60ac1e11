package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_BACKEND", "LIFETIME_PRICE", "SUBSCRIPTION_CURRENCY", "ALLOW_TRIAL_RESTART", "DEDUPE_PAYMENTS", "CORS_ALLOWED_ORIGINS", "JWT_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 49.99, cfg.LifetimePrice)
	assert.Equal(t, "USD", cfg.Policy.Currency)
	assert.Equal(t, "stripe", cfg.Policy.PaymentMethod)
	assert.False(t, cfg.Policy.AllowTrialRestart)
	assert.True(t, cfg.Policy.DedupePayments)
	assert.Equal(t, 720*time.Hour, cfg.JWT.TTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/cuscatlan")
	t.Setenv("LIFETIME_PRICE", "19.5")
	t.Setenv("SUBSCRIPTION_CURRENCY", "eur")
	t.Setenv("ALLOW_TRIAL_RESTART", "true")
	t.Setenv("DEDUPE_PAYMENTS", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, 19.5, cfg.LifetimePrice)
	assert.Equal(t, "EUR", cfg.Policy.Currency)
	assert.True(t, cfg.Policy.AllowTrialRestart)
	assert.False(t, cfg.Policy.DedupePayments)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestValidate(t *testing.T) {
	base := func() AppConfig {
		t.Setenv("STORE_BACKEND", "")
		return Load()
	}

	cfg := base()
	cfg.StoreBackend = "dynamo"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StoreBackend = StorePostgres
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.LifetimePrice = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Policy.Currency = "DOLLARS"
	assert.Error(t, cfg.Validate())
}
