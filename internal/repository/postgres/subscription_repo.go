// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"cuscatlan-service/internal/domain/subscription"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// SubscriptionRepository keeps one JSONB document per identity.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Get retrieves the record stored for identity
func (r *SubscriptionRepository) Get(ctx context.Context, identity string) (*subscription.Record, error) {
	query := `SELECT record FROM subscriptions WHERE identity = $1`

	var doc []byte
	err := r.db.QueryRow(ctx, query, identity).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	rec, err := subscription.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrCorruptRecord, err)
	}
	return rec, nil
}

// Put upserts the whole document for identity
func (r *SubscriptionRepository) Put(ctx context.Context, identity string, rec *subscription.Record) error {
	doc, err := subscription.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	query := `
		INSERT INTO subscriptions (identity, record, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (identity) DO UPDATE
		SET record = EXCLUDED.record, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, identity, string(doc)); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

// GetMany loads several identities at once. Corrupt rows are skipped.
func (r *SubscriptionRepository) GetMany(ctx context.Context, identities []string) (map[string]*subscription.Record, error) {
	out := make(map[string]*subscription.Record, len(identities))
	if len(identities) == 0 {
		return out, nil
	}

	query := `SELECT identity, record FROM subscriptions WHERE identity = ANY($1)`

	rows, err := r.db.Query(ctx, query, pq.Array(identities))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			identity string
			doc      []byte
		)
		if err := rows.Scan(&identity, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		rec, err := subscription.Decode(doc)
		if err != nil {
			continue
		}
		out[identity] = rec
	}

	return out, rows.Err()
}
