package plan

import (
	"testing"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := NewResolverFromMap(map[string]types.PlanTier{
		"price_monthly": types.PlanTierMonthly,
		"price_yearly":  types.PlanTierYearly,
		"price_broken":  types.PlanTierFree,
	})

	tests := []struct {
		name    string
		priceID string
		status  types.SubscriptionStatus
		want    types.PlanTier
	}{
		{"active monthly", "price_monthly", types.SubscriptionStatusActive, types.PlanTierMonthly},
		{"trialing yearly", "price_yearly", types.SubscriptionStatusTrialing, types.PlanTierYearly},
		{"past due yearly", "price_yearly", types.SubscriptionStatusPastDue, types.PlanTierFree},
		{"canceled yearly", "price_yearly", types.SubscriptionStatusCanceled, types.PlanTierFree},
		{"incomplete monthly", "price_monthly", types.SubscriptionStatusIncomplete, types.PlanTierFree},
		{"unknown price", "price_legacy", types.SubscriptionStatusActive, types.PlanTierFree},
		{"missing price", "", types.SubscriptionStatusActive, types.PlanTierFree},
		{"synthetic free", types.FreePriceID, types.SubscriptionStatusActive, types.PlanTierFree},
		{"empty status", "price_monthly", "", types.PlanTierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.priceID, tt.status))
		})
	}
}

func TestIsPurchasable(t *testing.T) {
	r := NewResolver(&config.Configuration{
		Billing: config.BillingConfig{
			Prices: []config.PriceConfig{
				{ID: "price_1PqYearly", Tier: types.PlanTierYearly},
			},
		},
	})

	assert.True(t, r.IsPurchasable("price_1PqYearly"))
	assert.False(t, r.IsPurchasable("price_1pqyearly"))
	assert.False(t, r.IsPurchasable(types.FreePriceID))
	assert.Equal(t, types.PlanTierYearly, r.Resolve("price_1PqYearly", types.SubscriptionStatusActive))
}
