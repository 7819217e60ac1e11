// internal/service/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cuscatlan-service/internal/domain/auth"
	xerrors "cuscatlan-service/internal/pkg/errors"
	"cuscatlan-service/internal/pkg/jwt"
	"cuscatlan-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IdentityRepository is implemented by the redis and postgres identity stores.
type IdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*auth.Identity, error)
	Create(ctx context.Context, identity *auth.Identity) error
	UpdateRole(ctx context.Context, email string, role auth.Role) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// SessionNotifier pushes session events to open realtime connections.
type SessionNotifier interface {
	ForceLogout(email, jti, reason string)
}

type AuthService struct {
	identities     IdentityRepository
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	notifier       SessionNotifier
	logger         *zap.Logger
}

func NewAuthService(
	identities IdentityRepository,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		identities:     identities,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		logger:         logger,
	}
}

// SetNotifier attaches the websocket hub once it exists.
func (s *AuthService) SetNotifier(n SessionNotifier) {
	s.notifier = n
}

// ========== Registration ==========

// Register creates a new user account and logs it in
func (s *AuthService) Register(ctx context.Context, req *auth.RegisterRequest) (*auth.LoginResponse, error) {
	email := auth.NormalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", xerrors.ErrInvalidInput)
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", xerrors.ErrInvalidInput, auth.MinPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := &auth.Identity{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         auth.RoleUser,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if xerrors.Is(err, xerrors.ErrDuplicateEntry) {
			return nil, fmt.Errorf("%w: email already registered", xerrors.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	s.logger.Info("user registered", zap.String("email", email))

	// Auto-login after registration
	return s.loginWithIdentity(ctx, identity, req.IPAddress, req.UserAgent)
}

// ========== Login ==========

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	email := auth.NormalizeEmail(req.Email)

	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: too many login attempts, please try again in 15 minutes", xerrors.ErrRateLimited)
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("identity lookup failed", zap.String("email", email), zap.Error(err))
		}
		return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials (attempts remaining: %d)", xerrors.ErrUnauthorized, remaining)
	}

	if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	return s.loginWithIdentity(ctx, identity, req.IPAddress, req.UserAgent)
}

// loginWithIdentity issues an access token and stores its session
func (s *AuthService) loginWithIdentity(ctx context.Context, identity *auth.Identity, ipAddress, userAgent string) (*auth.LoginResponse, error) {
	accessToken, jti, expiresAt, err := s.jwtManager.Generator.GenerateAccessToken(
		identity.Email,
		identity.Name,
		string(identity.Role),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := time.Now()
	sessionData := &session.SessionData{
		JTI:            jti,
		Email:          identity.Email,
		Name:           identity.Name,
		Role:           string(identity.Role),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      expiresAt,
	}

	if err := s.sessionManager.CreateSession(ctx, sessionData); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &auth.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		ExpiresAt:   expiresAt,
		User:        identity.Info(),
	}, nil
}

// ========== Logout ==========

// Logout invalidates the current session and revokes its token
func (s *AuthService) Logout(ctx context.Context, email, jti string, expiresAt time.Time) error {
	if err := s.sessionManager.InvalidateSession(ctx, email, jti); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	if err := s.sessionManager.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(email, jti, "User logged out")
	}

	return nil
}

// LogoutAllSessions invalidates all sessions for a user
func (s *AuthService) LogoutAllSessions(ctx context.Context, email string) error {
	if err := s.sessionManager.InvalidateAllUserSessions(ctx, email); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(email, "", "All sessions logged out")
	}

	return nil
}

// ValidateToken validates a JWT token and its session
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	blacklisted, err := s.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		return nil, fmt.Errorf("%w: token has been revoked", xerrors.ErrSessionExpired)
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.Subject, claims.ID); err != nil {
		return nil, fmt.Errorf("session not found or expired: %w", err)
	}

	return claims, nil
}

// ========== Password Reset ==========

const forgotPasswordMessage = "If an account exists for this email, a reset token has been issued"

// ForgotPassword issues a reset token. Unknown emails get the same message and no token.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*auth.ForgotPasswordResponse, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", xerrors.ErrInvalidInput)
	}

	allowed, err := s.rateLimiter.CheckPasswordResetAttempt(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: too many password reset attempts, please try again later", xerrors.ErrRateLimited)
	}

	resp := &auth.ForgotPasswordResponse{Message: forgotPasswordMessage}

	if _, err := s.identities.FindByEmail(ctx, email); err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to find identity: %w", err)
		}
		return resp, nil
	}

	token, expiresAt, err := s.sessionManager.IssuePasswordResetToken(ctx, email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("password reset requested", zap.String("email", email))

	resp.ResetToken = token
	resp.ExpiresAt = &expiresAt
	return resp, nil
}

// ResetPassword sets a new password from a reset token and ends every session of the account
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", xerrors.ErrInvalidInput, auth.MinPasswordLength)
	}

	email, err := s.sessionManager.RedeemPasswordResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.identities.UpdatePassword(ctx, email, string(hashedPassword)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.LogoutAllSessions(ctx, email); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	s.logger.Info("password reset", zap.String("email", email))
	return nil
}

// ========== Profile ==========

// Me returns the account behind the token subject
func (s *AuthService) Me(ctx context.Context, email string) (*auth.UserInfo, error) {
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	info := identity.Info()
	return &info, nil
}

// GetActiveSessions returns all active sessions for a user
func (s *AuthService) GetActiveSessions(ctx context.Context, email string) ([]*session.SessionData, error) {
	sessions, err := s.sessionManager.GetUserActiveSessions(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return sessions, nil
}

// ========== Admin ==========

// SetRole promotes or demotes an account. Existing sessions are ended so the
// next token carries the new role.
func (s *AuthService) SetRole(ctx context.Context, email string, role auth.Role) (*auth.UserInfo, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", xerrors.ErrInvalidInput, role)
	}

	email = auth.NormalizeEmail(email)
	if err := s.identities.UpdateRole(ctx, email, role); err != nil {
		return nil, err
	}

	if err := s.LogoutAllSessions(ctx, email); err != nil {
		s.logger.Warn("failed to end sessions after role change", zap.String("email", email), zap.Error(err))
	}

	s.logger.Info("role updated", zap.String("email", email), zap.String("role", string(role)))

	return s.Me(ctx, email)
}
