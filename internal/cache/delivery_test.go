package cache

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryLog(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	log := NewDeliveryLog(NewInMemoryCache(cfg, logger.NewNopLogger()), cfg)

	assert.False(t, log.Seen(ctx, "evt_1"))
	log.Remember(ctx, "evt_1")
	assert.True(t, log.Seen(ctx, "evt_1"))
	assert.False(t, log.Seen(ctx, "evt_2"))

	log.Remember(ctx, "")
	assert.False(t, log.Seen(ctx, ""))
}

func TestDeliveryLogExpires(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	log := NewDeliveryLogWithCache(NewInMemoryCache(cfg, logger.NewNopLogger()), 20*time.Millisecond)

	log.Remember(ctx, "evt_1")
	assert.True(t, log.Seen(ctx, "evt_1"))
	assert.Eventually(t, func() bool { return !log.Seen(ctx, "evt_1") }, time.Second, 10*time.Millisecond)
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	log := NewDeliveryLog(NewInMemoryCache(cfg, logger.NewNopLogger()), cfg)

	log.Remember(ctx, "evt_1")
	assert.False(t, log.Seen(ctx, "evt_1"))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "webhook_delivery:v1:evt_1", GenerateKey(PrefixWebhookDelivery, "evt_1"))
	assert.Equal(t, "webhook_delivery:v1", GenerateKey(PrefixWebhookDelivery))
}
