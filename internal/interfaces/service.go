package interfaces

import (
	"context"

	"github.com/flexprice/plansync/internal/api/dto"
	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/flexprice/plansync/internal/domain/user"
)

// ReconcilerService is the only writer of subscription state and plan tiers
type ReconcilerService interface {
	// EnsureUser creates the user with a synthetic free subscription on first sight
	EnsureUser(ctx context.Context, userID, email string) (*user.User, error)

	HandleCheckoutCompleted(ctx context.Context, event *billing.CheckoutCompleted) (*billing.Result, error)
	HandleSubscriptionChanged(ctx context.Context, event *billing.SubscriptionChanged) (*billing.Result, error)
	HandleSubscriptionDeleted(ctx context.Context, event *billing.SubscriptionDeleted) (*billing.Result, error)
	HandlePaymentSucceeded(ctx context.Context, event *billing.PaymentSucceeded) (*billing.Result, error)

	// ReconcileOnDemand makes the user's local state match the provider's list of
	// subscriptions. It is safe to call redundantly and concurrently.
	ReconcileOnDemand(ctx context.Context, userID string, trigger string) (*billing.Result, error)
	// ReconcileAll runs ReconcileOnDemand for every user linked to a provider customer
	ReconcileAll(ctx context.Context) (*dto.SweepResponse, error)
}

// QuotaService gates free-tier feature usage
type QuotaService interface {
	CheckAndConsume(ctx context.Context, userID string, feature string) (*dto.QuotaDecisionResponse, error)
	GetStatus(ctx context.Context, userID string) (*dto.BillingStatusResponse, error)
}

// BillingService starts provider-side changes: checkout and cancellation
type BillingService interface {
	CreateCheckout(ctx context.Context, userID string, req dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)
	CancelSubscription(ctx context.Context, userID string) (*dto.CancelSubscriptionResponse, error)
}
