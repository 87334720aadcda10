package subscription

import (
	"context"
)

type Repository interface {
	// Create inserts the user's first subscription row
	Create(ctx context.Context, sub *Subscription) error
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	// Replace retires the user's current row and inserts sub in its place.
	// Must run inside a transaction.
	Replace(ctx context.Context, sub *Subscription) error
	// Update rewrites the mutable provider fields of an existing row
	Update(ctx context.Context, sub *Subscription) error
}
