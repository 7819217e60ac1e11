// internal/repository/redisstore/identity_store.go
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cuscatlan-service/internal/domain/auth"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// UsersKey is the hash of accounts, field = normalized email.
const UsersKey = "users"

type IdentityStore struct {
	client *redis.Client
}

func NewIdentityStore(client *redis.Client) *IdentityStore {
	return &IdentityStore{client: client}
}

// FindByEmail retrieves an identity by email
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	data, err := s.client.HGet(ctx, UsersKey, auth.NormalizeEmail(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var identity auth.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrCorruptRecord, err)
	}
	return &identity, nil
}

// Create stores a new identity. An existing email is rejected with ErrDuplicateEntry.
func (s *IdentityStore) Create(ctx context.Context, identity *auth.Identity) error {
	identity.Email = auth.NormalizeEmail(identity.Email)

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	created, err := s.client.HSetNX(ctx, UsersKey, identity.Email, data).Result()
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if !created {
		return xerrors.ErrDuplicateEntry
	}
	return nil
}

// UpdateRole changes the role of an existing identity.
func (s *IdentityStore) UpdateRole(ctx context.Context, email string, role auth.Role) error {
	return s.update(ctx, email, func(identity *auth.Identity) {
		identity.Role = role
	})
}

// UpdatePassword replaces the password hash of an existing identity.
func (s *IdentityStore) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	return s.update(ctx, email, func(identity *auth.Identity) {
		identity.PasswordHash = passwordHash
	})
}

func (s *IdentityStore) update(ctx context.Context, email string, apply func(*auth.Identity)) error {
	email = auth.NormalizeEmail(email)

	// optimistic lock on the users hash
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, UsersKey, email).Bytes()
		if errors.Is(err, redis.Nil) {
			return xerrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find identity: %w", err)
		}

		var identity auth.Identity
		if err := json.Unmarshal(data, &identity); err != nil {
			return fmt.Errorf("%w: %v", xerrors.ErrCorruptRecord, err)
		}
		apply(&identity)
		identity.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(&identity)
		if err != nil {
			return fmt.Errorf("failed to marshal identity: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, UsersKey, email, updated)
			return nil
		})
		return err
	}, UsersKey)
}
