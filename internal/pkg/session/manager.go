// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager keeps sessions in Redis; a token is only honored while its session exists.
type Manager struct {
	client *redis.Client
	logger *zap.Logger
}

func NewManager(client *redis.Client, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client: client,
		logger: logger,
	}
}

// CreateSession stores a new session in Redis until it expires and indexes its
// jti under the owner's session set
func (m *Manager) CreateSession(ctx context.Context, session *SessionData) error {
	key := m.sessionKey(session.Email, session.JTI)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	// the index lives as long as its longest session
	indexKey := m.userSessionsKey(session.Email)
	indexTTL, err := m.client.PTTL(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read session index: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, ttl)
		pipe.SAdd(ctx, indexKey, session.JTI)
		if indexTTL < ttl {
			pipe.Expire(ctx, indexKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}

	return nil
}

// GetSession retrieves a session from Redis
func (m *Manager) GetSession(ctx context.Context, email, jti string) (*SessionData, error) {
	data, err := m.client.Get(ctx, m.sessionKey(email, jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	go m.touch(email, jti)

	session.LastActivityAt = time.Now()
	return &session, nil
}

// InvalidateSession removes a session from Redis
func (m *Manager) InvalidateSession(ctx context.Context, email, jti string) error {
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.sessionKey(email, jti))
		pipe.SRem(ctx, m.userSessionsKey(email), jti)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// InvalidateAllUserSessions removes every session indexed for the user
func (m *Manager) InvalidateAllUserSessions(ctx context.Context, email string) error {
	indexKey := m.userSessionsKey(email)
	jtis, err := m.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, m.sessionKey(email, jti))
	}
	keys = append(keys, indexKey)

	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// GetUserActiveSessions returns all live sessions for a user; expired entries are
// pruned from the index on the way
func (m *Manager) GetUserActiveSessions(ctx context.Context, email string) ([]*SessionData, error) {
	indexKey := m.userSessionsKey(email)
	jtis, err := m.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(jtis) == 0 {
		return nil, nil
	}

	keys := make([]string, len(jtis))
	for i, jti := range jtis {
		keys[i] = m.sessionKey(email, jti)
	}
	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	var (
		sessions []*SessionData
		stale    []interface{}
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, jtis[i])
			continue
		}

		var session SessionData
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			continue
		}
		sessions = append(sessions, &session)
	}

	if len(stale) > 0 {
		if err := m.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			m.logger.Debug("failed to prune session index", zap.String("email", email), zap.Error(err))
		}
	}

	return sessions, nil
}

// IsTokenBlacklisted checks if a token is blacklisted
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// BlacklistToken adds a token to the blacklist
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err()
}

// touch updates the last activity timestamp, keeping the remaining TTL
func (m *Manager) touch(email, jti string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := m.sessionKey(email, jti)
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		return
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return
	}
	session.LastActivityAt = time.Now()

	updated, err := json.Marshal(session)
	if err != nil {
		return
	}

	if err := m.client.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		m.logger.Debug("failed to update session activity", zap.Error(err))
	}
}

func (m *Manager) sessionKey(email, jti string) string {
	return fmt.Sprintf("session:%s:%s", email, jti)
}

func (m *Manager) userSessionsKey(email string) string {
	return fmt.Sprintf("user_sessions:%s", email)
}

func (m *Manager) blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}
