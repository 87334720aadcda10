package sentry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestDisabledServiceIsNoop(t *testing.T) {
	svc := NewSentryService(config.GetDefaultConfig(), logger.NewNopLogger())
	ctx := context.Background()

	span, got := svc.StartDBSpan(ctx, "postgres.transaction", nil)
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)

	span, got = svc.MonitorWebhookEvent(ctx, "invoice.paid", time.Now(), nil)
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)

	span, got = svc.StartTransaction(ctx, "billing.sweep")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)

	svc.CaptureWithTags(errors.New("boom"), map[string]string{"user_id": "user_1"})
}

func TestLagSeverity(t *testing.T) {
	assert.Equal(t, "normal", lagSeverity(5*time.Second))
	assert.Equal(t, "warning", lagSeverity(2*time.Minute))
	assert.Equal(t, "critical", lagSeverity(time.Hour))
}
