// internal/service/auth/admin_create.go
package auth

import (
	"context"
	"fmt"
	"time"

	"cuscatlan-service/internal/domain/auth"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin creates the bootstrap admin account, or promotes it if it already
// exists as a regular user (called on startup)
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("admin email and password must be provided via environment variables")
	}

	existing, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			s.logger.Info("admin already exists, skipping creation", zap.String("email", email))
			return nil
		}
		if err := s.identities.UpdateRole(ctx, email, auth.RoleAdmin); err != nil {
			return fmt.Errorf("failed to promote admin: %w", err)
		}
		s.logger.Info("existing account promoted to admin", zap.String("email", email))
		return nil
	case !xerrors.Is(err, xerrors.ErrNotFound):
		return fmt.Errorf("failed to check admin existence: %w", err)
	}

	if len(password) < auth.MinPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters", auth.MinPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := &auth.Identity{
		Email:        email,
		Name:         name,
		Role:         auth.RoleAdmin,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.Info("admin created successfully",
		zap.String("email", email),
		zap.String("name", name),
	)

	return nil
}
