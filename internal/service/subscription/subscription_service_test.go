package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cuscatlan-service/internal/domain/subscription"
	xerrors "cuscatlan-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	puts    int
	failPut error
	failGet error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string][]byte)}
}

func (f *fakeStore) Get(_ context.Context, identity string) (*subscription.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	doc, ok := f.docs[identity]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	rec, err := subscription.Decode(doc)
	if err != nil {
		return nil, errors.Join(xerrors.ErrCorruptRecord, err)
	}
	return rec, nil
}

func (f *fakeStore) Put(_ context.Context, identity string, rec *subscription.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.failPut != nil {
		return f.failPut
	}
	doc, err := subscription.Encode(rec)
	if err != nil {
		return err
	}
	f.docs[identity] = doc
	return nil
}

type recordingNotifier struct {
	events []subscription.Access
	who    []string
}

func (n *recordingNotifier) SubscriptionChanged(identity string, access subscription.Access) {
	n.who = append(n.who, identity)
	n.events = append(n.events, access)
}

func newService(t *testing.T, store Store, policy subscription.Policy) *SubscriptionService {
	t.Helper()
	return NewSubscriptionService(store, policy, zap.NewNop())
}

func startTrial(t *testing.T, svc *SubscriptionService, ctx context.Context, identity string, now time.Time) *subscription.Record {
	t.Helper()
	rec, err := svc.StartTrial(ctx, identity, now)
	require.NoError(t, err)
	return rec
}

func TestLoadRecordDefaultsWithoutPersisting(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	rec := svc.LoadRecord(context.Background(), "a@x.com")

	assert.Equal(t, subscription.StatusNone, rec.Status)
	assert.False(t, rec.IsLifetime)
	assert.Empty(t, rec.Payments)
	assert.False(t, rec.IsSubscribed(t0))
	assert.Equal(t, 0, store.puts)
}

func TestLoadRecordTreatsCorruptAsAbsent(t *testing.T) {
	store := newFakeStore()
	store.docs["a@x.com"] = []byte(`{"status":`)
	svc := newService(t, store, subscription.DefaultPolicy())

	rec := svc.LoadRecord(context.Background(), "a@x.com")

	assert.Equal(t, subscription.NewRecord(), rec)
}

func TestLoadRecordStoreErrorFallsBackToDefault(t *testing.T) {
	store := newFakeStore()
	store.failGet = errors.New("connection refused")
	svc := newService(t, store, subscription.DefaultPolicy())

	assert.Equal(t, subscription.NewRecord(), svc.LoadRecord(context.Background(), "a@x.com"))
}

func TestStartTrialScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	rec := startTrial(t, svc, ctx, "a@x.com", t0)
	require.NotNil(t, rec.TrialStartDate)
	require.NotNil(t, rec.TrialEndDate)
	assert.Equal(t, subscription.StatusTrial, rec.Status)
	assert.Equal(t, t0, *rec.TrialStartDate)
	assert.Equal(t, t0.Add(7*day), *rec.TrialEndDate)
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, 7, rec.DaysRemainingInTrial(t0))

	loaded := svc.LoadRecord(ctx, "a@x.com")
	assert.Equal(t, rec, loaded)

	at6 := svc.Access(ctx, "a@x.com", t0.Add(6*day))
	assert.Equal(t, subscription.StatusTrial, at6.Status)
	assert.Equal(t, 1, at6.DaysRemainingInTrial)

	at8 := svc.Access(ctx, "a@x.com", t0.Add(8*day))
	assert.Equal(t, subscription.StatusExpired, at8.Status)
	assert.Equal(t, 0, at8.DaysRemainingInTrial)
	assert.False(t, at8.IsSubscribed)
}

func TestStartTrialTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	first := startTrial(t, svc, ctx, "a@x.com", t0)
	second := startTrial(t, svc, ctx, "a@x.com", t0.Add(2*day))

	assert.Equal(t, *first.TrialStartDate, *second.TrialStartDate)
	assert.Equal(t, *first.TrialEndDate, *second.TrialEndDate)
	assert.Equal(t, 1, store.puts)
}

func TestStartTrialNoopWhenActive(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	_, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0)
	require.NoError(t, err)

	rec := startTrial(t, svc, ctx, "a@x.com", t0.Add(day))
	assert.Nil(t, rec.TrialStartDate)
	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.Equal(t, 1, store.puts)
}

func TestStartTrialAfterExpiryFollowsPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("restart denied", func(t *testing.T) {
		store := newFakeStore()
		svc := newService(t, store, subscription.DefaultPolicy())

		startTrial(t, svc, ctx, "a@x.com", t0)
		rec := startTrial(t, svc, ctx, "a@x.com", t0.Add(10*day))

		assert.Equal(t, t0, *rec.TrialStartDate)
		assert.Equal(t, subscription.StatusExpired, rec.EffectiveStatus(t0.Add(10*day)))
		assert.Equal(t, 1, store.puts)
	})

	t.Run("restart allowed", func(t *testing.T) {
		store := newFakeStore()
		policy := subscription.DefaultPolicy()
		policy.AllowTrialRestart = true
		svc := newService(t, store, policy)

		startTrial(t, svc, ctx, "a@x.com", t0)
		restart := t0.Add(10 * day)
		rec := startTrial(t, svc, ctx, "a@x.com", restart)

		assert.Equal(t, restart, *rec.TrialStartDate)
		assert.Equal(t, subscription.StatusTrial, rec.EffectiveStatus(restart))
		assert.Equal(t, 2, store.puts)
	})
}

func TestActivateSubscriptionScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	notifier := &recordingNotifier{}
	svc := newService(t, store, subscription.DefaultPolicy())
	svc.SetNotifier(notifier)

	trial := startTrial(t, svc, ctx, "a@x.com", t0)
	rec, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0.Add(3*day))
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.True(t, rec.IsLifetime)
	assert.Equal(t, t0.Add(3*day), *rec.SubscriptionStartDate)
	assert.Equal(t, *trial.TrialStartDate, *rec.TrialStartDate)
	assert.Equal(t, *trial.TrialEndDate, *rec.TrialEndDate)

	require.Len(t, rec.Payments, 1)
	p := rec.Payments[0]
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, 49.99, p.Amount)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, subscription.PaymentCompleted, p.Status)
	assert.Equal(t, "stripe", p.PaymentMethod)
	assert.Equal(t, "pay_1", p.TransactionID)

	later := t0.Add(30 * day)
	assert.True(t, rec.IsSubscribed(later))
	assert.False(t, rec.IsTrialActive(later))

	require.Len(t, notifier.events, 2)
	assert.Equal(t, []string{"a@x.com", "a@x.com"}, notifier.who)
	assert.Equal(t, subscription.StatusActive, notifier.events[1].Status)
}

func TestActivateSubscriptionAppendsExactlyOne(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore(), subscription.DefaultPolicy())

	first, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0)
	require.NoError(t, err)
	second, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_2", 49.99, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Len(t, first.Payments, 1)
	assert.Len(t, second.Payments, 2)
	assert.Equal(t, "pay_1", second.Payments[0].ID)
	assert.Equal(t, "pay_2", second.Payments[1].ID)
	assert.True(t, second.IsLifetime)
}

func TestActivateSubscriptionDuplicatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("deduplicated", func(t *testing.T) {
		store := newFakeStore()
		svc := newService(t, store, subscription.DefaultPolicy())

		_, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0)
		require.NoError(t, err)
		rec, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0.Add(time.Minute))
		require.NoError(t, err)

		assert.Len(t, rec.Payments, 1)
		assert.Equal(t, t0, *rec.SubscriptionStartDate)
		assert.Equal(t, 1, store.puts)
	})

	t.Run("appended", func(t *testing.T) {
		policy := subscription.DefaultPolicy()
		policy.DedupePayments = false
		svc := newService(t, newFakeStore(), policy)

		_, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0)
		require.NoError(t, err)
		rec, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0.Add(time.Minute))
		require.NoError(t, err)

		assert.Len(t, rec.Payments, 2)
	})
}

func TestActivateSubscriptionValidatesInput(t *testing.T) {
	svc := newService(t, newFakeStore(), subscription.DefaultPolicy())

	_, err := svc.ActivateSubscription(context.Background(), "a@x.com", "", 49.99, t0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = svc.ActivateSubscription(context.Background(), "a@x.com", "pay_1", 0, t0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestNoIdentityIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	assert.Equal(t, subscription.NewRecord(), startTrial(t, svc, ctx, "  ", t0))

	rec, err := svc.ActivateSubscription(ctx, "", "pay_1", 49.99, t0)
	require.NoError(t, err)
	assert.Equal(t, subscription.NewRecord(), rec)
	assert.Equal(t, 0, store.puts)
}

func TestIdentityIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore(), subscription.DefaultPolicy())

	startTrial(t, svc, ctx, "A@X.com ", t0)

	assert.Equal(t, subscription.StatusTrial, svc.LoadRecord(ctx, "a@x.com").Status)
}

func TestFailedWriteKeepsStateInMemory(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failPut = errors.New("disk full")
	svc := newService(t, store, subscription.DefaultPolicy())

	rec := startTrial(t, svc, ctx, "a@x.com", t0)
	assert.Equal(t, subscription.StatusTrial, rec.Status)
	assert.Empty(t, store.docs)

	loaded := svc.LoadRecord(ctx, "a@x.com")
	assert.Equal(t, subscription.StatusTrial, loaded.Status)

	store.failPut = nil
	_, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0.Add(day))
	require.NoError(t, err)

	stored, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.IsLifetime)
	assert.NotNil(t, stored.TrialStartDate)

	svc.mu.Lock()
	assert.Empty(t, svc.pending)
	svc.mu.Unlock()
}

func TestAddPaymentKeepsEntitlementState(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore(), subscription.DefaultPolicy())

	rec, err := svc.AddPayment(ctx, "a@x.com", subscription.Payment{
		ID:     "pay_failed",
		Amount: 49.99,
		Status: subscription.PaymentFailed,
	}, t0)
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusNone, rec.Status)
	assert.False(t, rec.IsLifetime)
	require.Len(t, rec.Payments, 1)
	assert.Equal(t, "USD", rec.Payments[0].Currency)
	assert.Equal(t, t0, rec.Payments[0].Date)

	_, err = svc.AddPayment(ctx, "a@x.com", subscription.Payment{ID: "x", Amount: 1, Status: "weird"}, t0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestTransitionsNeverOverwriteUnreadableRecord(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	_, err := svc.ActivateSubscription(ctx, "a@x.com", "pay_1", 49.99, t0)
	require.NoError(t, err)
	puts := store.puts

	store.failGet = errors.New("i/o timeout")

	_, err = svc.StartTrial(ctx, "a@x.com", t0.Add(day))
	assert.Error(t, err)
	_, err = svc.ActivateSubscription(ctx, "a@x.com", "pay_2", 49.99, t0.Add(day))
	assert.Error(t, err)
	_, err = svc.AddPayment(ctx, "a@x.com", subscription.Payment{ID: "pay_3", Amount: 1, Status: subscription.PaymentPending}, t0.Add(day))
	assert.Error(t, err)
	assert.Equal(t, puts, store.puts)

	store.failGet = nil
	rec := svc.LoadRecord(ctx, "a@x.com")
	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.True(t, rec.IsLifetime)
	require.Len(t, rec.Payments, 1)
	assert.Equal(t, "pay_1", rec.Payments[0].ID)
}

func TestLookupManyReportsStoreOutage(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store, subscription.DefaultPolicy())

	store.docs["bad@x.com"] = []byte(`{"status":`)
	found, missing, err := svc.LookupMany(ctx, []string{"bad@x.com", "none@x.com"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Equal(t, []string{"bad@x.com", "none@x.com"}, missing)

	store.failGet = errors.New("connection refused")
	_, _, err = svc.LookupMany(ctx, []string{"a@x.com"})
	assert.Error(t, err)
}

func TestLookupMany(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore(), subscription.DefaultPolicy())

	startTrial(t, svc, ctx, "a@x.com", t0)
	_, err := svc.ActivateSubscription(ctx, "b@x.com", "pay_1", 49.99, t0)
	require.NoError(t, err)

	found, missing, err := svc.LookupMany(ctx, []string{"a@x.com", "B@x.com", "c@x.com", "a@x.com"})
	require.NoError(t, err)

	assert.Len(t, found, 2)
	assert.True(t, found["b@x.com"].IsLifetime)
	assert.Equal(t, []string{"c@x.com"}, missing)

	_, _, err = svc.LookupMany(ctx, []string{" "})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
