package stripe

import (
	"context"

	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/stripe/stripe-go/v82"
)

const opCreateCustomer = "customers.create"

// CreateCustomer creates the Stripe customer a user pays through and returns its id.
// The idempotency key makes concurrent first checkouts of one user resolve to one customer.
func (c *Client) CreateCustomer(ctx context.Context, req billing.CreateCustomerRequest) (string, error) {
	cust, err := call(ctx, c, opCreateCustomer, func(ctx context.Context) (*stripe.Customer, error) {
		params := &stripe.CustomerCreateParams{
			Metadata: map[string]string{
				MetadataUserID: req.UserID,
			},
		}
		if req.Email != "" {
			params.Email = stripe.String(req.Email)
		}
		if req.IdempotencyKey != "" {
			params.SetIdempotencyKey(req.IdempotencyKey)
		}
		return c.sc.V1Customers.Create(ctx, params)
	})
	if err != nil {
		return "", err
	}

	c.logger.Infow("created stripe customer",
		"user_id", req.UserID,
		"stripe_customer_id", cust.ID)
	return cust.ID, nil
}
