package dto

import (
	"github.com/flexprice/plansync/internal/types"
)

// QuotaDecisionResponse is the outcome of one gated feature use
type QuotaDecisionResponse struct {
	Feature         types.FeatureKey `json:"feature"`
	Allowed         bool             `json:"allowed"`
	RequiresUpgrade bool             `json:"requires_upgrade"`
	PlanTier        types.PlanTier   `json:"plan_tier"`
	Used            int64            `json:"used"`
	// Remaining is -1 for plans without a limit
	Remaining int64 `json:"remaining"`
}
