package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"cuscatlan-service/internal/domain/auth"
	xerrors "cuscatlan-service/internal/pkg/errors"
	"cuscatlan-service/internal/pkg/jwt"
	"cuscatlan-service/internal/pkg/session"
	"cuscatlan-service/internal/repository/redisstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type forcedLogout struct {
	email, jti, reason string
}

type recordingNotifier struct {
	logouts []forcedLogout
}

func (n *recordingNotifier) ForceLogout(email, jti, reason string) {
	n.logouts = append(n.logouts, forcedLogout{email, jti, reason})
}

type fixture struct {
	svc      *AuthService
	mr       *miniredis.Miniredis
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	manager := jwt.NewManager(key, &key.PublicKey, jwt.Config{
		Issuer:   "cuscatlan",
		Audience: "cuscatlan-app",
		TTL:      time.Hour,
	})

	svc := NewAuthService(
		redisstore.NewIdentityStore(client),
		manager,
		session.NewManager(client, zap.NewNop()),
		session.NewRateLimiter(client),
		zap.NewNop(),
	)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	return &fixture{svc: svc, mr: mr, notifier: notifier}
}

func register(t *testing.T, f *fixture, email string) *auth.LoginResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &auth.RegisterRequest{
		Email:     email,
		Name:      "Ana",
		Password:  "secret1",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterLogsIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := register(t, f, "Ana@X.com")
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "ana@x.com", resp.User.Email)
	assert.Equal(t, auth.RoleUser, resp.User.Role)

	claims, err := f.svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", claims.Subject)

	_, err = f.svc.Register(ctx, &auth.RegisterRequest{Email: "ana@x.com", Name: "Other", Password: "secret1"})
	assert.ErrorIs(t, err, xerrors.ErrDuplicateEntry)

	_, err = f.svc.Register(ctx, &auth.RegisterRequest{Email: "bo@x.com", Name: "Bo", Password: "123"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "ana@x.com")

	resp, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ANA@x.com", Password: "secret1", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", resp.User.Name)

	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "wrong", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "ghost@x.com", Password: "secret1", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "ana@x.com")

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "wrong", IPAddress: "10.0.0.9"})
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	}

	_, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "secret1", IPAddress: "10.0.0.9"})
	assert.ErrorIs(t, err, xerrors.ErrRateLimited)

	f.mr.FastForward(16 * time.Minute)
	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "secret1", IPAddress: "10.0.0.9"})
	assert.NoError(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := register(t, f, "ana@x.com")

	claims, err := f.svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims.Subject, claims.ID, claims.ExpiresAt.Time))

	_, err = f.svc.ValidateToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)

	require.Len(t, f.notifier.logouts, 1)
	assert.Equal(t, forcedLogout{"ana@x.com", claims.ID, "User logged out"}, f.notifier.logouts[0])
}

func TestSetRoleEndsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := register(t, f, "ana@x.com")

	info, err := f.svc.SetRole(ctx, "ana@x.com", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, info.Role)

	_, err = f.svc.ValidateToken(ctx, resp.AccessToken)
	assert.Error(t, err)

	login, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "secret1"})
	require.NoError(t, err)
	claims, err := f.svc.ValidateToken(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())

	_, err = f.svc.SetRole(ctx, "ana@x.com", "root")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = f.svc.SetRole(ctx, "ghost@x.com", auth.RoleAdmin)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := register(t, f, "ana@x.com")
	second, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "secret1", IPAddress: "10.0.0.2"})
	require.NoError(t, err)

	forgot, err := f.svc.ForgotPassword(ctx, " ANA@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, forgot.ResetToken)
	require.NotNil(t, forgot.ExpiresAt)

	email, err := f.mr.Get("pwreset:" + forgot.ResetToken)
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", email)
	assert.Equal(t, session.PasswordResetTTL, f.mr.TTL("pwreset:"+forgot.ResetToken))

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, forgot.ResetToken, "123"), xerrors.ErrInvalidInput)
	require.NoError(t, f.svc.ResetPassword(ctx, forgot.ResetToken, "newsecret"))

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		_, err := f.svc.ValidateToken(ctx, token)
		assert.Error(t, err)
	}

	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "secret1", IPAddress: "10.0.0.3"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "ana@x.com", Password: "newsecret", IPAddress: "10.0.0.3"})
	assert.NoError(t, err)

	// single use
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, forgot.ResetToken, "another1"), xerrors.ErrInvalidInput)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.ForgotPassword(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.Empty(t, resp.ResetToken)
	assert.Nil(t, resp.ExpiresAt)
	assert.NotEmpty(t, resp.Message)
}

func TestPasswordResetTokenLifetime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "ana@x.com")

	old, err := f.svc.ForgotPassword(ctx, "ana@x.com")
	require.NoError(t, err)
	current, err := f.svc.ForgotPassword(ctx, "ana@x.com")
	require.NoError(t, err)

	// a newer token replaces the older one
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, old.ResetToken, "newsecret"), xerrors.ErrInvalidInput)

	f.mr.FastForward(session.PasswordResetTTL + time.Second)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, current.ResetToken, "newsecret"), xerrors.ErrInvalidInput)

	for i := 0; i < 3; i++ {
		_, err = f.svc.ForgotPassword(ctx, "ana@x.com")
		require.NoError(t, err)
	}
	_, err = f.svc.ForgotPassword(ctx, "ana@x.com")
	assert.ErrorIs(t, err, xerrors.ErrRateLimited)
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureAdmin(ctx, "admin@x.com", "adminpass", "Admin"))
	me, err := f.svc.Me(ctx, "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, me.Role)

	// idempotent
	require.NoError(t, f.svc.EnsureAdmin(ctx, "admin@x.com", "adminpass", "Admin"))

	register(t, f, "ana@x.com")
	require.NoError(t, f.svc.EnsureAdmin(ctx, "ana@x.com", "whatever", "Ana"))
	me, err = f.svc.Me(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, me.Role)

	assert.Error(t, f.svc.EnsureAdmin(ctx, "", "x", "x"))
}
