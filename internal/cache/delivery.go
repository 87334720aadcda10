package cache

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/config"
)

// DeliveryLog remembers recently processed provider event ids so that
// immediate redeliveries can be acknowledged without touching the database.
// Reconciliation is idempotent without it.
type DeliveryLog struct {
	cache Cache
	ttl   time.Duration
}

func NewDeliveryLog(c *InMemoryCache, cfg *config.Configuration) *DeliveryLog {
	return &DeliveryLog{cache: c, ttl: cfg.Billing.DeliveryCacheTTL}
}

// NewDeliveryLogWithCache is used when the backing cache is supplied directly
func NewDeliveryLogWithCache(c Cache, ttl time.Duration) *DeliveryLog {
	return &DeliveryLog{cache: c, ttl: ttl}
}

// Seen reports whether eventID was processed within the TTL
func (d *DeliveryLog) Seen(ctx context.Context, eventID string) bool {
	if eventID == "" || d.ttl <= 0 {
		return false
	}

	key := GenerateKey(PrefixWebhookDelivery, eventID)
	span := startSpan(ctx, "get", key)
	defer finishSpan(span)

	_, found := d.cache.Get(ctx, key)
	return found
}

// Remember records eventID as processed
func (d *DeliveryLog) Remember(ctx context.Context, eventID string) {
	if eventID == "" || d.ttl <= 0 {
		return
	}

	key := GenerateKey(PrefixWebhookDelivery, eventID)
	span := startSpan(ctx, "set", key)
	defer finishSpan(span)

	d.cache.Set(ctx, key, time.Now().UTC(), d.ttl)
}
