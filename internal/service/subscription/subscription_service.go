// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cuscatlan-service/internal/domain/subscription"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Store is the durable key-value mapping from identity to subscription record.
// Get returns xerrors.ErrNotFound when nothing is stored and xerrors.ErrCorruptRecord
// when the stored value can't be decoded.
type Store interface {
	Get(ctx context.Context, identity string) (*subscription.Record, error)
	Put(ctx context.Context, identity string, rec *subscription.Record) error
}

// BulkStore is implemented by stores that can fetch several identities at once.
type BulkStore interface {
	GetMany(ctx context.Context, identities []string) (map[string]*subscription.Record, error)
}

// Notifier is told about every persisted transition.
type Notifier interface {
	SubscriptionChanged(identity string, access subscription.Access)
}

type SubscriptionService struct {
	store    Store
	policy   subscription.Policy
	notifier Notifier
	logger   *zap.Logger

	// records whose durable write failed; served from memory until a later write succeeds
	mu      sync.Mutex
	pending map[string]*subscription.Record
}

func NewSubscriptionService(store Store, policy subscription.Policy, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		store:   store,
		policy:  policy,
		logger:  logger,
		pending: make(map[string]*subscription.Record),
	}
}

// SetNotifier attaches the realtime notifier once the hub exists.
func (s *SubscriptionService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *SubscriptionService) Policy() subscription.Policy {
	return s.policy
}

// ========== Reads ==========

// LoadRecord returns the stored record for identity, or the default empty record.
// The default is not persisted. An unreachable store also degrades to the default.
func (s *SubscriptionService) LoadRecord(ctx context.Context, identity string) *subscription.Record {
	rec, err := s.load(ctx, normalizeIdentity(identity))
	if err != nil {
		s.logger.Warn("failed to load subscription record, using default",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return subscription.NewRecord()
	}
	return rec
}

// load resolves absent and corrupt records to the default. Any other store error is
// returned so transitions never write over a record they could not read.
func (s *SubscriptionService) load(ctx context.Context, identity string) (*subscription.Record, error) {
	if identity == "" {
		return subscription.NewRecord(), nil
	}

	if rec, ok := s.pendingRecord(identity); ok {
		return rec, nil
	}

	rec, err := s.store.Get(ctx, identity)
	switch {
	case err == nil:
		return rec, nil
	case xerrors.Is(err, xerrors.ErrNotFound):
		return subscription.NewRecord(), nil
	case xerrors.Is(err, xerrors.ErrCorruptRecord):
		s.logger.Warn("corrupt subscription record, using default",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return subscription.NewRecord(), nil
	default:
		return nil, fmt.Errorf("failed to load subscription record: %w", err)
	}
}

// Access evaluates the gates for identity at now.
func (s *SubscriptionService) Access(ctx context.Context, identity string, now time.Time) subscription.Access {
	return s.LoadRecord(ctx, identity).Access(now)
}

// LookupMany is the admin bulk read. Identities without a record are reported as missing.
func (s *SubscriptionService) LookupMany(ctx context.Context, identities []string) (map[string]*subscription.Record, []string, error) {
	wanted := make([]string, 0, len(identities))
	seen := make(map[string]bool, len(identities))
	for _, id := range identities {
		id = normalizeIdentity(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return nil, nil, fmt.Errorf("%w: no identities given", xerrors.ErrInvalidInput)
	}

	found := make(map[string]*subscription.Record, len(wanted))
	if bulk, ok := s.store.(BulkStore); ok {
		recs, err := bulk.GetMany(ctx, wanted)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load subscriptions: %w", err)
		}
		found = recs
	} else {
		for _, id := range wanted {
			rec, err := s.store.Get(ctx, id)
			switch {
			case err == nil:
				found[id] = rec
			case xerrors.Is(err, xerrors.ErrNotFound), xerrors.Is(err, xerrors.ErrCorruptRecord):
			default:
				return nil, nil, fmt.Errorf("failed to load subscription for %s: %w", id, err)
			}
		}
	}

	var missing []string
	for _, id := range wanted {
		if rec, ok := s.pendingRecord(id); ok {
			found[id] = rec
			continue
		}
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}

	return found, missing, nil
}

// ========== Transitions ==========

// StartTrial grants the 7-day trial. It is a no-op while a trial or subscription is in effect,
// and, unless the policy allows restarts, once any trial has been granted.
func (s *SubscriptionService) StartTrial(ctx context.Context, identity string, now time.Time) (*subscription.Record, error) {
	identity = normalizeIdentity(identity)
	if identity == "" {
		return subscription.NewRecord(), nil
	}

	rec, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	switch rec.EffectiveStatus(now) {
	case subscription.StatusTrial, subscription.StatusActive:
		return rec, nil
	}
	if rec.TrialStartDate != nil && !s.policy.AllowTrialRestart {
		s.logger.Info("trial already used",
			zap.String("identity", identity),
			zap.Time("trial_start_date", *rec.TrialStartDate),
		)
		return rec, nil
	}

	start := stamp(now)
	end := start.Add(subscription.TrialDuration)

	updated := rec.Clone()
	updated.Status = subscription.StatusTrial
	updated.TrialStartDate = &start
	updated.TrialEndDate = &end

	s.persist(ctx, identity, updated, now)

	s.logger.Info("trial started",
		zap.String("identity", identity),
		zap.Time("trial_end_date", end),
	)

	return updated, nil
}

// ActivateSubscription records a completed lifetime purchase.
func (s *SubscriptionService) ActivateSubscription(ctx context.Context, identity, paymentID string, amount float64, now time.Time) (*subscription.Record, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is required", xerrors.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", xerrors.ErrInvalidInput)
	}

	identity = normalizeIdentity(identity)
	if identity == "" {
		return subscription.NewRecord(), nil
	}

	rec, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if s.policy.DedupePayments && rec.HasPayment(paymentID) {
		s.logger.Warn("duplicate payment ignored",
			zap.String("identity", identity),
			zap.String("payment_id", paymentID),
		)
		return rec, nil
	}

	at := stamp(now)

	updated := rec.Clone()
	updated.Payments = append(updated.Payments, subscription.Payment{
		ID:            paymentID,
		Amount:        amount,
		Currency:      s.policy.Currency,
		Status:        subscription.PaymentCompleted,
		Date:          at,
		PaymentMethod: s.policy.PaymentMethod,
		TransactionID: paymentID,
	})
	updated.Status = subscription.StatusActive
	updated.IsLifetime = true
	updated.SubscriptionStartDate = &at

	s.persist(ctx, identity, updated, now)

	s.logger.Info("lifetime subscription activated",
		zap.String("identity", identity),
		zap.String("payment_id", paymentID),
		zap.Float64("amount", amount),
		zap.String("currency", s.policy.Currency),
	)

	return updated, nil
}

// AddPayment appends a payment of any status without changing the entitlement state.
func (s *SubscriptionService) AddPayment(ctx context.Context, identity string, payment subscription.Payment, now time.Time) (*subscription.Record, error) {
	payment.ID = strings.TrimSpace(payment.ID)
	if payment.ID == "" {
		return nil, fmt.Errorf("%w: payment id is required", xerrors.ErrInvalidInput)
	}
	if !payment.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", xerrors.ErrInvalidInput, payment.Status)
	}
	if payment.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", xerrors.ErrInvalidInput)
	}

	identity = normalizeIdentity(identity)
	if identity == "" {
		return subscription.NewRecord(), nil
	}

	rec, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if s.policy.DedupePayments && rec.HasPayment(payment.ID) {
		return rec, nil
	}

	if payment.Currency == "" {
		payment.Currency = s.policy.Currency
	}
	payment.Currency = strings.ToUpper(payment.Currency)
	if payment.Date.IsZero() {
		payment.Date = stamp(now)
	} else {
		payment.Date = stamp(payment.Date)
	}

	updated := rec.Clone()
	updated.Payments = append(updated.Payments, payment)

	s.persist(ctx, identity, updated, now)

	s.logger.Info("payment recorded",
		zap.String("identity", identity),
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)),
	)

	return updated, nil
}

// ========== Persistence ==========

// persist performs the single write of a transition. A failed write keeps the record in
// memory for the rest of the process instead of surfacing an error.
func (s *SubscriptionService) persist(ctx context.Context, identity string, rec *subscription.Record, now time.Time) {
	if err := s.store.Put(ctx, identity, rec); err != nil {
		s.logger.Warn("failed to persist subscription record, keeping it in memory",
			zap.String("identity", identity),
			zap.Error(err),
		)
		s.mu.Lock()
		s.pending[identity] = rec.Clone()
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		delete(s.pending, identity)
		s.mu.Unlock()
	}

	if s.notifier != nil {
		s.notifier.SubscriptionChanged(identity, rec.Access(now))
	}
}

func (s *SubscriptionService) pendingRecord(identity string) (*subscription.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pending[identity]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// stamp normalizes timestamps to UTC millisecond precision, the resolution of the
// persisted ISO-8601 strings.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
