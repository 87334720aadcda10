package stripe

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/flexprice/plansync/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

const (
	// MetadataUserID is the metadata key carrying the internal user id on
	// checkout sessions, subscriptions and customers created by this service
	MetadataUserID = "user_id"

	opGetSubscription    = "subscriptions.retrieve"
	opListSubscriptions  = "subscriptions.list"
	opCancelSubscription = "subscriptions.cancel"
)

// GetSubscription re-fetches the current state of a subscription
func (c *Client) GetSubscription(ctx context.Context, providerSubscriptionID string) (*billing.SubscriptionSnapshot, error) {
	sub, err := call(ctx, c, opGetSubscription, func(ctx context.Context) (*stripe.Subscription, error) {
		params := &stripe.SubscriptionRetrieveParams{}
		return c.sc.V1Subscriptions.Retrieve(ctx, providerSubscriptionID, params)
	})
	if err != nil {
		return nil, err
	}
	return SnapshotFromStripe(sub), nil
}

// ListSubscriptions returns every subscription of the customer that has not ended.
// Stripe omits canceled subscriptions unless asked for them explicitly.
func (c *Client) ListSubscriptions(ctx context.Context, providerCustomerID string) ([]*billing.SubscriptionSnapshot, error) {
	return call(ctx, c, opListSubscriptions, func(ctx context.Context) ([]*billing.SubscriptionSnapshot, error) {
		params := &stripe.SubscriptionListParams{
			Customer: stripe.String(providerCustomerID),
		}
		params.Limit = stripe.Int64(100)

		var out []*billing.SubscriptionSnapshot
		for sub, err := range c.sc.V1Subscriptions.List(ctx, params) {
			if err != nil {
				return nil, err
			}
			out = append(out, SnapshotFromStripe(sub))
		}
		return out, nil
	})
}

// CancelSubscription ends the subscription immediately
func (c *Client) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	_, err := call(ctx, c, opCancelSubscription, func(ctx context.Context) (*stripe.Subscription, error) {
		params := &stripe.SubscriptionCancelParams{}
		return c.sc.V1Subscriptions.Cancel(ctx, providerSubscriptionID, params)
	})
	return err
}

// SnapshotFromStripe converts a Stripe subscription into the provider snapshot the
// reconciler works with. Billing periods live on the subscription items; the first
// item carries the price and period used for the plan.
func SnapshotFromStripe(sub *stripe.Subscription) *billing.SubscriptionSnapshot {
	if sub == nil {
		return nil
	}

	snap := &billing.SubscriptionSnapshot{
		ProviderSubscriptionID: sub.ID,
		Status:                 types.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		CancelAt:               unixPtr(sub.CancelAt),
		CanceledAt:             unixPtr(sub.CanceledAt),
		CreatedAt:              unixTime(sub.Created),
	}
	if sub.Customer != nil {
		snap.ProviderCustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		snap.UserID = sub.Metadata[MetadataUserID]
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
		snap.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		snap.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return snap
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	return lo.ToPtr(unixTime(sec))
}
