package stripe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/plansync/internal/config"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/metrics"
	"github.com/stripe/stripe-go/v82"
)

// Client talks to the Stripe API on behalf of the reconciliation engine.
// It implements billing.Provider.
type Client struct {
	sc      *stripe.Client
	stripe  config.StripeConfig
	billing config.BillingConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Stripe client
func NewClient(cfg *config.Configuration, logger *logger.Logger, metrics *metrics.Metrics) *Client {
	return NewClientWithStripe(stripe.NewClient(cfg.Stripe.SecretKey, nil), cfg, logger, metrics)
}

// NewClientWithStripe wraps an already configured stripe-go client
func NewClientWithStripe(sc *stripe.Client, cfg *config.Configuration, logger *logger.Logger, metrics *metrics.Metrics) *Client {
	return &Client{
		sc:      sc,
		stripe:  cfg.Stripe,
		billing: cfg.Billing,
		logger:  logger,
		metrics: metrics,
	}
}

// WebhookSecret returns the endpoint secret used to verify deliveries
func (c *Client) WebhookSecret() string {
	return c.stripe.WebhookSecret
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.billing.InitialBackoff > 0 {
		b.InitialInterval = c.billing.InitialBackoff
	}
	if c.billing.MaxBackoff > 0 {
		b.MaxInterval = c.billing.MaxBackoff
	}
	// retries are bounded by count, not elapsed time
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.billing.MaxRetries), ctx)
}

// call runs fn with a per-attempt timeout and retries transient failures.
// Errors that are not worth retrying stop the loop immediately. The returned
// error is marked ErrProvider and still unwraps to the underlying *stripe.Error.
func call[T any](ctx context.Context, c *Client, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out     T
		attempt int
		start   = time.Now()
	)

	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.billing.ProviderTimeout)
		defer cancel()

		res, err := fn(attemptCtx)
		if err != nil {
			if ctx.Err() != nil || !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warnw("retrying stripe call",
			"operation", operation,
			"attempt", attempt,
			"wait", wait,
			"error", err)
	}

	err := backoff.RetryNotify(op, c.newBackOff(ctx), notify)
	c.metrics.RecordProviderCall(operation, err, time.Since(start))
	if err != nil {
		c.logger.Errorw("stripe call failed",
			"operation", operation,
			"attempts", attempt,
			"retryable", isRetryable(err),
			"error", err)
		var zero T
		return zero, ierr.WithError(err).
			WithHintf("Billing provider request %s failed", operation).
			WithReportableDetails(map[string]any{
				"operation":   operation,
				"attempts":    attempt,
				"status_code": statusCode(err),
			}).
			Mark(ierr.ErrProvider)
	}
	return out, nil
}

// isRetryable reports whether a failed provider call may succeed when repeated.
// Rate limiting, server errors and transport failures are transient; any other
// API error describes a request that will keep failing.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		code := se.HTTPStatusCode
		return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	return true
}

func statusCode(err error) int {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode
	}
	return 0
}

// IsNotFound reports whether the provider answered 404 for the requested object
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}
