// internal/repository/redisstore/subscription_store.go
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"cuscatlan-service/internal/domain/subscription"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// SubscriptionsKey is the hash holding one JSON document per identity.
const SubscriptionsKey = "subscriptions"

type SubscriptionStore struct {
	client *redis.Client
	key    string
}

func NewSubscriptionStore(client *redis.Client) *SubscriptionStore {
	return &SubscriptionStore{client: client, key: SubscriptionsKey}
}

// Get returns the record stored for identity.
func (s *SubscriptionStore) Get(ctx context.Context, identity string) (*subscription.Record, error) {
	if s.client == nil {
		return nil, fmt.Errorf("subscription store: redis client not configured")
	}

	data, err := s.client.HGet(ctx, s.key, identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription: %w", err)
	}

	rec, err := subscription.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrCorruptRecord, err)
	}
	return rec, nil
}

// Put replaces the whole document for identity.
func (s *SubscriptionStore) Put(ctx context.Context, identity string, rec *subscription.Record) error {
	if s.client == nil {
		return fmt.Errorf("subscription store: redis client not configured")
	}

	data, err := subscription.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	if err := s.client.HSet(ctx, s.key, identity, data).Err(); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

// GetMany loads several identities in one round trip. Absent and corrupt entries are omitted.
func (s *SubscriptionStore) GetMany(ctx context.Context, identities []string) (map[string]*subscription.Record, error) {
	out := make(map[string]*subscription.Record, len(identities))
	if len(identities) == 0 {
		return out, nil
	}
	if s.client == nil {
		return nil, fmt.Errorf("subscription store: redis client not configured")
	}

	values, err := s.client.HMGet(ctx, s.key, identities...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := subscription.Decode([]byte(raw))
		if err != nil {
			continue
		}
		out[identities[i]] = rec
	}
	return out, nil
}
