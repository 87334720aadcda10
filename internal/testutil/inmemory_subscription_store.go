package testutil

import (
	"context"

	"github.com/flexprice/plansync/internal/domain/subscription"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/samber/lo"
)

var _ subscription.Repository = (*InMemorySubscriptionStore)(nil)

// InMemorySubscriptionStore keeps the same constraints as the subscriptions table:
// one row per user and unique provider subscription ids
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore(copySubscription),
	}
}

func copySubscription(s *subscription.Subscription) *subscription.Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.ProviderSubscriptionID = copyPtr(s.ProviderSubscriptionID)
	c.CancelAt = copyPtr(s.CancelAt)
	c.CanceledAt = copyPtr(s.CanceledAt)
	c.ProviderEventAt = copyPtr(s.ProviderEventAt)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return lo.ToPtr(*p)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return s.Atomic(func(items map[string]*subscription.Subscription) error {
		if err := checkConstraints(items, sub, ""); err != nil {
			return err
		}
		items[sub.ID] = copySubscription(sub)
		return nil
	})
}

func (s *InMemorySubscriptionStore) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, ok := s.Find(ctx, func(sub *subscription.Subscription) bool {
		return sub.UserID == userID
	})
	if !ok {
		return nil, subscriptionNotFound(map[string]any{"user_id": userID})
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	sub, ok := s.Find(ctx, func(sub *subscription.Subscription) bool {
		return sub.IsProvider(providerSubscriptionID)
	})
	if !ok {
		return nil, subscriptionNotFound(map[string]any{"provider_subscription_id": providerSubscriptionID})
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) Replace(ctx context.Context, sub *subscription.Subscription) error {
	if err := requireTx(ctx, "subscription replace"); err != nil {
		return err
	}
	return s.Atomic(func(items map[string]*subscription.Subscription) error {
		if err := checkConstraints(items, sub, sub.UserID); err != nil {
			return err
		}
		for id, existing := range items {
			if existing.UserID == sub.UserID {
				delete(items, id)
			}
		}
		items[sub.ID] = copySubscription(sub)
		return nil
	})
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return s.Atomic(func(items map[string]*subscription.Subscription) error {
		existing, ok := items[sub.ID]
		if !ok || existing.UserID != sub.UserID {
			return subscriptionNotFound(map[string]any{"subscription_id": sub.ID})
		}
		updated := copySubscription(existing)
		updated.Status = sub.Status
		updated.PriceID = sub.PriceID
		updated.CurrentPeriodStart = sub.CurrentPeriodStart
		updated.CurrentPeriodEnd = sub.CurrentPeriodEnd
		updated.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		updated.CancelAt = copyPtr(sub.CancelAt)
		updated.CanceledAt = copyPtr(sub.CanceledAt)
		updated.ProviderEventAt = copyPtr(sub.ProviderEventAt)
		items[sub.ID] = updated
		return nil
	})
}

// checkConstraints mirrors the unique indexes; rows owned by replacingUser are
// about to be deleted and do not conflict
func checkConstraints(items map[string]*subscription.Subscription, sub *subscription.Subscription, replacingUser string) error {
	for id, existing := range items {
		if replacingUser != "" && existing.UserID == replacingUser {
			continue
		}
		if id == sub.ID || existing.UserID == sub.UserID ||
			(!sub.IsSynthetic() && existing.IsProvider(sub.GetProviderSubscriptionID())) {
			return ierr.NewError("subscription already exists").
				WithHint("Subscription already exists").
				WithReportableDetails(map[string]any{
					"user_id":         sub.UserID,
					"subscription_id": sub.ID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return nil
}

func subscriptionNotFound(details map[string]any) error {
	return ierr.NewError("subscription not found").
		WithHint("Subscription not found").
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}
