// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"cuscatlan-service/internal/domain/auth"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// FindByEmail retrieves an identity by email
func (r *AuthRepository) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	query := `
		SELECT email, name, role, password_hash, created_at, updated_at
		FROM identities
		WHERE email = $1
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, auth.NormalizeEmail(email)).Scan(
		&identity.Email, &identity.Name, &identity.Role, &identity.PasswordHash,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &identity, nil
}

// Create inserts a new identity
func (r *AuthRepository) Create(ctx context.Context, identity *auth.Identity) error {
	identity.Email = auth.NormalizeEmail(identity.Email)

	query := `
		INSERT INTO identities (email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		identity.Email, identity.Name, identity.Role, identity.PasswordHash,
		identity.CreatedAt, identity.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return xerrors.ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

// UpdateRole changes the role of an existing identity
func (r *AuthRepository) UpdateRole(ctx context.Context, email string, role auth.Role) error {
	query := `UPDATE identities SET role = $1, updated_at = NOW() WHERE email = $2`

	tag, err := r.db.Exec(ctx, query, role, auth.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the password hash of an existing identity
func (r *AuthRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	query := `UPDATE identities SET password_hash = $1, updated_at = NOW() WHERE email = $2`

	tag, err := r.db.Exec(ctx, query, passwordHash, auth.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
