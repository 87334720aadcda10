package stripe

import (
	"strings"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ParseWebhookEvent verifies a delivery against the configured endpoint secret
func (c *Client) ParseWebhookEvent(payload []byte, signature string) (*stripe.Event, error) {
	event, err := VerifyEvent(payload, signature, c.stripe.WebhookSecret)
	if err != nil {
		c.logger.Warnw("stripe webhook verification failed", "error", err)
		return nil, err
	}
	return event, nil
}

// VerifyEvent checks the Stripe-Signature header over the raw request body and only
// then decodes it. API version mismatches are tolerated; only the fields the router
// reads are decoded.
func VerifyEvent(payload []byte, signature string, secret string) (*stripe.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ierr.NewError("missing webhook signature").
			WithHint("Stripe-Signature header is required").
			Mark(ierr.ErrSignature)
	}
	if len(payload) == 0 {
		return nil, ierr.NewError("empty webhook payload").
			WithHint("Webhook payload is empty").
			Mark(ierr.ErrSignature)
	}

	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, options)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrSignature)
	}
	return &event, nil
}
