// internal/domain/subscription/entity.go
package subscription

import (
	"fmt"
	"time"
)

// TrialDuration is fixed; trialEndDate is never recomputed after the trial starts.
const TrialDuration = 7 * 24 * time.Hour

const day = 24 * time.Hour

type Status string

const (
	StatusNone    Status = "none"
	StatusTrial   Status = "trial"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusTrial, StatusActive, StatusExpired:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Payment is one purchase attempt or outcome. Entries are never mutated once appended.
type Payment struct {
	ID            string        `json:"id"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	Date          time.Time     `json:"date"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
}

// Record is the persisted entitlement state of one identity. Status holds the last
// explicitly set state; use EffectiveStatus for the time-aware one.
type Record struct {
	Status                Status     `json:"status"`
	TrialStartDate        *time.Time `json:"trialStartDate"`
	TrialEndDate          *time.Time `json:"trialEndDate"`
	SubscriptionStartDate *time.Time `json:"subscriptionStartDate"`
	IsLifetime            bool       `json:"isLifetime"`
	Payments              []Payment  `json:"payments"`
}

// NewRecord returns the default state of an identity that has never subscribed.
func NewRecord() *Record {
	return &Record{
		Status:   StatusNone,
		Payments: []Payment{},
	}
}

// Validate reports whether a decoded record is well formed.
func (r *Record) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown subscription status %q", r.Status)
	}
	if r.TrialStartDate != nil && r.TrialEndDate == nil {
		return fmt.Errorf("trial start date without trial end date")
	}
	for i, p := range r.Payments {
		if p.ID == "" {
			return fmt.Errorf("payment %d has no id", i)
		}
		if !p.Status.Valid() {
			return fmt.Errorf("payment %s has unknown status %q", p.ID, p.Status)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can't alias stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.TrialStartDate = cloneTime(r.TrialStartDate)
	out.TrialEndDate = cloneTime(r.TrialEndDate)
	out.SubscriptionStartDate = cloneTime(r.SubscriptionStartDate)
	out.Payments = make([]Payment, len(r.Payments))
	copy(out.Payments, r.Payments)
	return &out
}

// HasPayment reports whether a payment with the given id was already recorded.
func (r *Record) HasPayment(id string) bool {
	if r == nil {
		return false
	}
	for _, p := range r.Payments {
		if p.ID == id {
			return true
		}
	}
	return false
}

// EffectiveStatus derives the current status from the stored timestamps.
// It is recomputed on every call and must never be cached.
func (r *Record) EffectiveStatus(now time.Time) Status {
	if r == nil {
		return StatusNone
	}

	if r.IsLifetime && r.SubscriptionStartDate != nil {
		return StatusActive
	}

	if r.Status == StatusTrial && r.TrialEndDate != nil {
		// now == trialEndDate is still inside the trial
		if now.After(*r.TrialEndDate) {
			return StatusExpired
		}
		return StatusTrial
	}

	return r.Status
}

func (r *Record) IsSubscribed(now time.Time) bool {
	switch r.EffectiveStatus(now) {
	case StatusActive, StatusTrial:
		return true
	}
	return false
}

func (r *Record) IsTrialActive(now time.Time) bool {
	return r.EffectiveStatus(now) == StatusTrial
}

// DaysRemainingInTrial rounds up, so 23 hours left counts as one day.
func (r *Record) DaysRemainingInTrial(now time.Time) int {
	if r == nil || r.TrialEndDate == nil {
		return 0
	}

	left := r.TrialEndDate.Sub(now)
	if left <= 0 {
		return 0
	}

	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}

// Access evaluates every gate at a single instant.
func (r *Record) Access(now time.Time) Access {
	return Access{
		Status:               r.EffectiveStatus(now),
		IsSubscribed:         r.IsSubscribed(now),
		IsTrialActive:        r.IsTrialActive(now),
		DaysRemainingInTrial: r.DaysRemainingInTrial(now),
		IsLifetime:           r != nil && r.IsLifetime,
		EvaluatedAt:          now,
	}
}

// Access is the set of derived gates consumed by content-access decisions.
type Access struct {
	Status               Status    `json:"status"`
	IsSubscribed         bool      `json:"is_subscribed"`
	IsTrialActive        bool      `json:"is_trial_active"`
	DaysRemainingInTrial int       `json:"days_remaining_in_trial"`
	IsLifetime           bool      `json:"is_lifetime"`
	EvaluatedAt          time.Time `json:"evaluated_at"`
}

// Policy holds the decisions left open by the trial/payment rules.
type Policy struct {
	// AllowTrialRestart lets an identity whose trial has expired start another one.
	AllowTrialRestart bool
	// DedupePayments makes a repeated payment id a no-op instead of a second entry.
	DedupePayments bool
	// Currency is the single supported currency for lifetime purchases.
	Currency string
	// PaymentMethod is recorded on completed lifetime purchases.
	PaymentMethod string
}

func DefaultPolicy() Policy {
	return Policy{
		AllowTrialRestart: false,
		DedupePayments:    true,
		Currency:          "USD",
		PaymentMethod:     "stripe",
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
