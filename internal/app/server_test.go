package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cuscatlan-service/internal/config"
	"cuscatlan-service/internal/domain/subscription"
	"cuscatlan-service/internal/pkg/jwt"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeKeyPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	}), 0o644))

	return privPath, pubPath
}

func newSetupConfig(t *testing.T) config.AppConfig {
	t.Helper()

	mr := miniredis.RunT(t)
	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir)

	return config.AppConfig{
		HTTPAddr:           "127.0.0.1:0",
		RedisAddr:          mr.Addr(),
		StoreBackend:       config.StoreRedis,
		ContentDir:         dir,
		CORSAllowedOrigins: []string{"*"},
		LifetimePrice:      49.99,
		Policy:             subscription.DefaultPolicy(),
		JWT: jwt.Config{
			PrivPath: privPath,
			PubPath:  pubPath,
			Issuer:   "cuscatlan",
			Audience: "cuscatlan-app",
			TTL:      time.Hour,
		},
	}
}

func TestShutdownBeforeServe(t *testing.T) {
	s := NewServer(newSetupConfig(t), zap.NewNop())
	require.NoError(t, s.Setup())

	require.NoError(t, s.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept listening after Shutdown")
	}
}

func TestServeStopsOnShutdown(t *testing.T) {
	s := NewServer(newSetupConfig(t), zap.NewNop())
	require.NoError(t, s.Setup())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	// the server may still be binding; Shutdown is safe either way
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServeWithoutSetup(t *testing.T) {
	s := NewServer(config.AppConfig{}, zap.NewNop())
	assert.Error(t, s.Serve())
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestSetupFailsOnMissingKeys(t *testing.T) {
	cfg := newSetupConfig(t)
	cfg.JWT.PrivPath = filepath.Join(t.TempDir(), "missing.pem")

	s := NewServer(cfg, zap.NewNop())
	assert.Error(t, s.Setup())
	assert.NoError(t, s.Shutdown(context.Background()))
}
