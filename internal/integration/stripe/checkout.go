package stripe

import (
	"context"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/domain/billing"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/stripe/stripe-go/v82"
)

const (
	opCreateCheckoutSession = "checkout_sessions.create"
	opRetrieveCoupon        = "coupons.retrieve"
)

// CreateCheckoutSession starts a subscription checkout for one price.
// Sessions and the subscriptions they create carry the internal user id so
// webhook deliveries resolve to the user without looking at e-mail addresses.
func (c *Client) CreateCheckoutSession(ctx context.Context, req billing.CheckoutSessionRequest) (*billing.CheckoutSession, error) {
	session, err := call(ctx, c, opCreateCheckoutSession, func(ctx context.Context) (*stripe.CheckoutSession, error) {
		params := c.checkoutSessionParams(req)
		return c.sc.V1CheckoutSessions.Create(ctx, params)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Infow("created stripe checkout session",
		"user_id", req.UserID,
		"price_id", req.PriceID,
		"session_id", session.ID)

	return &billing.CheckoutSession{
		ID:           session.ID,
		ClientSecret: session.ClientSecret,
		URL:          session.URL,
	}, nil
}

func (c *Client) checkoutSessionParams(req billing.CheckoutSessionRequest) *stripe.CheckoutSessionCreateParams {
	metadata := map[string]string{MetadataUserID: req.UserID}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}

	if c.stripe.UIMode == config.StripeUIModeEmbedded {
		params.UIMode = stripe.String(string(stripe.CheckoutSessionUIModeEmbedded))
		params.ReturnURL = stripe.String(c.stripe.SuccessURL)
	} else {
		params.SuccessURL = stripe.String(c.stripe.SuccessURL)
		if c.stripe.CancelURL != "" {
			params.CancelURL = stripe.String(c.stripe.CancelURL)
		}
	}

	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionCreateDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params
}

// ValidateCoupon checks that a coupon exists and can still be redeemed
func (c *Client) ValidateCoupon(ctx context.Context, couponID string) error {
	coupon, err := call(ctx, c, opRetrieveCoupon, func(ctx context.Context) (*stripe.Coupon, error) {
		return c.sc.V1Coupons.Retrieve(ctx, couponID, &stripe.CouponRetrieveParams{})
	})
	if err != nil {
		if IsNotFound(err) {
			return ierr.NewError("coupon not found").
				WithHintf("Coupon %s does not exist", couponID).
				WithReportableDetails(map[string]any{"coupon_id": couponID}).
				Mark(ierr.ErrValidation)
		}
		return err
	}

	if !coupon.Valid {
		return ierr.NewError("coupon is no longer valid").
			WithHintf("Coupon %s has expired or reached its redemption limit", couponID).
			WithReportableDetails(map[string]any{"coupon_id": couponID}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
