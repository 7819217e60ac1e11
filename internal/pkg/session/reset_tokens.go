// internal/pkg/session/reset_tokens.go
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// PasswordResetTTL is how long a reset token stays redeemable.
const PasswordResetTTL = time.Hour

// IssuePasswordResetToken stores a fresh single-use token for email. A previous
// unredeemed token for the same account stops working.
func (m *Manager) IssuePasswordResetToken(ctx context.Context, email string) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	previous, err := m.client.Get(ctx, m.resetOwnerKey(email)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", time.Time{}, fmt.Errorf("failed to read reset token: %w", err)
	}

	expiresAt := time.Now().Add(PasswordResetTTL)
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" {
			pipe.Del(ctx, m.resetTokenKey(previous))
		}
		pipe.Set(ctx, m.resetTokenKey(token), email, PasswordResetTTL)
		pipe.Set(ctx, m.resetOwnerKey(email), token, PasswordResetTTL)
		return nil
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store reset token: %w", err)
	}

	return token, expiresAt, nil
}

// RedeemPasswordResetToken consumes token and returns the account it was issued for.
func (m *Manager) RedeemPasswordResetToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: invalid or expired reset token", xerrors.ErrInvalidInput)
	}

	email, err := m.client.GetDel(ctx, m.resetTokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: invalid or expired reset token", xerrors.ErrInvalidInput)
	}
	if err != nil {
		return "", fmt.Errorf("failed to redeem reset token: %w", err)
	}

	if err := m.client.Del(ctx, m.resetOwnerKey(email)).Err(); err != nil {
		m.logger.Debug("failed to clear reset token owner")
	}

	return email, nil
}

func (m *Manager) resetTokenKey(token string) string {
	return fmt.Sprintf("pwreset:%s", token)
}

func (m *Manager) resetOwnerKey(email string) string {
	return fmt.Sprintf("pwreset_owner:%s", email)
}
