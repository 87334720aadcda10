package cache

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// Cache is the subset of a key/value cache the delivery log needs.
// Plan tiers and subscription rows are never cached.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
}

const PrefixWebhookDelivery = "webhook_delivery:v1"

// GenerateKey joins the prefix and parts with a colon
func GenerateKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}

// startSpan traces a cache operation when the request carries a sentry hub
func startSpan(ctx context.Context, operation string, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "cache."+operation)
	span.Op = "db.cache"
	span.Description = "cache." + operation
	span.SetData("key", key)
	return span
}

func finishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}
