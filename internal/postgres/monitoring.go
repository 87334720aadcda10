package postgres

import (
	"context"

	"github.com/flexprice/plansync/internal/logger"
	sentryService "github.com/flexprice/plansync/internal/sentry"
	"github.com/getsentry/sentry-go"
)

var _ IClient = (*SentryClient)(nil)

// SentryClient traces every transaction boundary of the wrapped client
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx runs fn in a transaction under a db span whose status reflects the outcome
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})

	err := c.client.WithTx(spanCtx, fn)
	if span != nil {
		span.Status = sentry.SpanStatusOK
		if err != nil {
			span.Status = sentry.SpanStatusInternalError
		}
		span.Finish()
	}
	return err
}
