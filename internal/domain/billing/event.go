package billing

import (
	"time"

	"github.com/flexprice/plansync/internal/types"
)

// EventMeta carries the identity of a verified provider notification.
// CreatedAt is the provider's creation time and is zero when the provider did not send one.
type EventMeta struct {
	ID                 string
	Kind               types.BillingEventKind
	ProviderType       string
	CreatedAt          time.Time
	SubjectUserID      string
	ProviderCustomerID string
}

// CheckoutCompleted reports a finished checkout. Only the subscription id is used;
// the subscription itself is always re-fetched from the provider.
type CheckoutCompleted struct {
	EventMeta
	ProviderSubscriptionID string
}

// SubscriptionChanged carries the provider's view of a created or updated subscription
type SubscriptionChanged struct {
	EventMeta
	Subscription SubscriptionSnapshot
}

// SubscriptionDeleted reports that a provider subscription ended for good
type SubscriptionDeleted struct {
	EventMeta
	ProviderSubscriptionID string
}

// PaymentSucceeded is a secondary confirmation that a subscription price was paid
type PaymentSucceeded struct {
	EventMeta
	ProviderSubscriptionID string
	PriceID                string
}

// SubscriptionSnapshot is the provider-side state of one subscription
type SubscriptionSnapshot struct {
	ProviderSubscriptionID string
	ProviderCustomerID     string
	// UserID is the internal user id recorded in the subscription metadata, if any
	UserID             string
	PriceID            string
	Status             types.SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CancelAt           *time.Time
	CanceledAt         *time.Time
	CreatedAt          time.Time
}

// Result is what reconciling a single event or on-demand check did.
// EventID and Kind are empty for on-demand checks.
type Result struct {
	EventID  string
	Kind     types.BillingEventKind
	UserID   string
	Outcome  types.ReconciliationOutcome
	PlanTier types.PlanTier
}

// NewResult starts the result of handling the event described by meta
func NewResult(meta EventMeta) *Result {
	return &Result{
		EventID: meta.ID,
		Kind:    meta.Kind,
		UserID:  meta.SubjectUserID,
	}
}
