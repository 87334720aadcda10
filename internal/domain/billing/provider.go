package billing

import (
	"context"
)

// Provider is the billing provider as seen by the reconciliation engine.
// Implementations bound every call with a timeout and a small retry budget.
type Provider interface {
	GetSubscription(ctx context.Context, providerSubscriptionID string) (*SubscriptionSnapshot, error)
	// ListSubscriptions returns the customer's subscriptions that have not ended
	ListSubscriptions(ctx context.Context, providerCustomerID string) ([]*SubscriptionSnapshot, error)
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// ValidateCoupon returns a validation error for unknown or expired coupons
	ValidateCoupon(ctx context.Context, couponID string) error
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error
}

type CreateCustomerRequest struct {
	UserID         string
	Email          string
	IdempotencyKey string
}

type CheckoutSessionRequest struct {
	UserID         string
	CustomerID     string
	PriceID        string
	CouponID       string
	IdempotencyKey string
}

// CheckoutSession holds whichever of ClientSecret (embedded) or URL (hosted) the provider returned
type CheckoutSession struct {
	ID           string
	ClientSecret string
	URL          string
}
