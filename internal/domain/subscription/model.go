package subscription

import (
	"time"

	"github.com/flexprice/plansync/internal/types"
)

// Subscription is the single subscription row a user owns.
// Paid rows use the provider subscription id as their id; the synthetic free row
// has no provider subscription id.
type Subscription struct {
	ID                     string                   `db:"id" json:"id"`
	UserID                 string                   `db:"user_id" json:"user_id"`
	Status                 types.SubscriptionStatus `db:"status" json:"status"`
	PriceID                string                   `db:"price_id" json:"price_id"`
	ProviderSubscriptionID *string                  `db:"provider_subscription_id" json:"provider_subscription_id,omitempty"`
	CurrentPeriodStart     time.Time                `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd       time.Time                `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd      bool                     `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CancelAt               *time.Time               `db:"cancel_at" json:"cancel_at,omitempty"`
	CanceledAt             *time.Time               `db:"canceled_at" json:"canceled_at,omitempty"`
	// ProviderEventAt is the provider-side time of the newest information applied to the user
	ProviderEventAt *time.Time `db:"provider_event_at" json:"provider_event_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// NewFreeSubscription builds the synthetic free placeholder for a user
func NewFreeSubscription(userID string, now time.Time) *Subscription {
	return &Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             userID,
		Status:             types.SubscriptionStatusActive,
		PriceID:            types.FreePriceID,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   types.FreePeriodEnd,
		CreatedAt:          now,
	}
}

// IsSynthetic reports whether this is the locally created free placeholder
func (s *Subscription) IsSynthetic() bool {
	return s.ProviderSubscriptionID == nil || *s.ProviderSubscriptionID == ""
}

func (s *Subscription) GetProviderSubscriptionID() string {
	if s.ProviderSubscriptionID == nil {
		return ""
	}
	return *s.ProviderSubscriptionID
}

// IsProvider reports whether the row mirrors the given provider subscription
func (s *Subscription) IsProvider(providerSubscriptionID string) bool {
	return providerSubscriptionID != "" && s.GetProviderSubscriptionID() == providerSubscriptionID
}

// IsStale reports whether information created at eventAt precedes the newest
// information already applied. A zero eventAt is never stale.
func (s *Subscription) IsStale(eventAt time.Time) bool {
	return s.ProviderEventAt != nil && !eventAt.IsZero() && eventAt.Before(*s.ProviderEventAt)
}

// IsStrictlyNewer reports whether eventAt is known and later than everything applied.
func (s *Subscription) IsStrictlyNewer(eventAt time.Time) bool {
	if eventAt.IsZero() {
		return false
	}
	return s.ProviderEventAt == nil || eventAt.After(*s.ProviderEventAt)
}

// Watermark returns the later of the stored provider time and t
func (s *Subscription) Watermark(t time.Time) *time.Time {
	if s.ProviderEventAt != nil && (t.IsZero() || s.ProviderEventAt.After(t)) {
		w := *s.ProviderEventAt
		return &w
	}
	if t.IsZero() {
		return nil
	}
	w := t.UTC()
	return &w
}

// SameState reports whether two rows describe the same provider state,
// ignoring identity and bookkeeping columns
func (s *Subscription) SameState(o *Subscription) bool {
	return s.Status == o.Status &&
		s.PriceID == o.PriceID &&
		s.GetProviderSubscriptionID() == o.GetProviderSubscriptionID() &&
		s.CurrentPeriodStart.Equal(o.CurrentPeriodStart) &&
		s.CurrentPeriodEnd.Equal(o.CurrentPeriodEnd) &&
		s.CancelAtPeriodEnd == o.CancelAtPeriodEnd &&
		timeEqual(s.CancelAt, o.CancelAt) &&
		timeEqual(s.CanceledAt, o.CanceledAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
