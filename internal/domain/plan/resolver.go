// Package plan maps billing provider prices to product plan tiers.
// Nothing else in the codebase interprets price identifiers.
package plan

import (
	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/types"
)

// Resolver is a pure price/status to tier mapping built from configuration
type Resolver struct {
	tiers map[string]types.PlanTier
}

func NewResolver(cfg *config.Configuration) *Resolver {
	return NewResolverFromMap(cfg.Billing.PriceTiers())
}

// NewResolverFromMap builds a resolver over an explicit price table
func NewResolverFromMap(tiers map[string]types.PlanTier) *Resolver {
	copied := make(map[string]types.PlanTier, len(tiers))
	for priceID, tier := range tiers {
		if tier.IsPaid() {
			copied[priceID] = tier
		}
	}
	return &Resolver{tiers: copied}
}

// Resolve returns the tier a subscription to priceID in the given status grants.
// Unknown prices and non-entitled statuses resolve to free.
func (r *Resolver) Resolve(priceID string, status types.SubscriptionStatus) types.PlanTier {
	if !status.IsEntitled() {
		return types.PlanTierFree
	}
	if tier, ok := r.tiers[priceID]; ok {
		return tier
	}
	return types.PlanTierFree
}

// IsPurchasable reports whether priceID can be sold through checkout
func (r *Resolver) IsPurchasable(priceID string) bool {
	_, ok := r.tiers[priceID]
	return ok
}
