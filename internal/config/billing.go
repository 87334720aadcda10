package config

import (
	"fmt"
	"time"

	"github.com/flexprice/plansync/internal/types"
)

type StripeUIMode string

const (
	StripeUIModeHosted   StripeUIMode = "hosted"
	StripeUIModeEmbedded StripeUIMode = "embedded"
)

// StripeConfig holds the credentials and checkout settings of the Stripe account
type StripeConfig struct {
	SecretKey      string       `mapstructure:"secret_key" validate:"required"`
	PublishableKey string       `mapstructure:"publishable_key"`
	WebhookSecret  string       `mapstructure:"webhook_secret" validate:"required"`
	SuccessURL     string       `mapstructure:"success_url" validate:"required"`
	CancelURL      string       `mapstructure:"cancel_url"`
	UIMode         StripeUIMode `mapstructure:"ui_mode" validate:"oneof=hosted embedded"`
}

// PriceConfig maps one provider price identifier to the tier it sells.
// Kept as a list because viper lower-cases map keys and price ids are case sensitive.
type PriceConfig struct {
	ID   string         `mapstructure:"id" validate:"required"`
	Tier types.PlanTier `mapstructure:"tier" validate:"required"`
}

type BillingConfig struct {
	Prices           []PriceConfig    `mapstructure:"prices" validate:"dive"`
	FreeLimits       map[string]int64 `mapstructure:"free_limits"`
	DefaultFreeLimit int64            `mapstructure:"default_free_limit" validate:"gte=0"`
	ProviderTimeout  time.Duration    `mapstructure:"provider_timeout" validate:"gt=0"`
	MaxRetries       uint64           `mapstructure:"max_retries"`
	InitialBackoff   time.Duration    `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration    `mapstructure:"max_backoff"`
	DeliveryCacheTTL time.Duration    `mapstructure:"delivery_cache_ttl"`
	Sweep            SweepConfig      `mapstructure:"sweep"`
}

// SweepConfig bounds the drift sweep that reconciles every paying user
type SweepConfig struct {
	Concurrency   int     `mapstructure:"concurrency" validate:"gte=1"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gt=0"`
	BatchSize     int     `mapstructure:"batch_size" validate:"gte=1"`
}

// PriceTiers returns the configured price to tier mapping
func (c BillingConfig) PriceTiers() map[string]types.PlanTier {
	out := make(map[string]types.PlanTier, len(c.Prices))
	for _, p := range c.Prices {
		out[p.ID] = p.Tier
	}
	return out
}

// FreeLimit returns the lifetime free-tier allowance of a feature. Features
// missing from free_limits get the default; a configured 0 makes a feature paid-only.
func (c BillingConfig) FreeLimit(feature types.FeatureKey) int64 {
	if limit, ok := c.FreeLimits[string(feature)]; ok {
		return limit
	}
	return c.DefaultFreeLimit
}

func (c BillingConfig) validatePrices() error {
	seen := make(map[string]struct{}, len(c.Prices))
	for _, p := range c.Prices {
		if !p.Tier.IsPaid() {
			return fmt.Errorf("billing price %q must map to a paid tier, got %q", p.ID, p.Tier)
		}
		if p.ID == types.FreePriceID {
			return fmt.Errorf("billing price id %q is reserved", p.ID)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("billing price %q configured twice", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
