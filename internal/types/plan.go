package types

import (
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/samber/lo"
)

// PlanTier is the product-facing subscription level of a user
type PlanTier string

const (
	PlanTierFree    PlanTier = "free"
	PlanTierMonthly PlanTier = "monthly"
	PlanTierYearly  PlanTier = "yearly"
)

func (p PlanTier) String() string {
	return string(p)
}

func (p PlanTier) IsPaid() bool {
	return p == PlanTierMonthly || p == PlanTierYearly
}

func (p PlanTier) Validate() error {
	allowed := []PlanTier{
		PlanTierFree,
		PlanTierMonthly,
		PlanTierYearly,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid plan tier").
			WithHint("Invalid plan tier").
			WithReportableDetails(map[string]any{
				"plan_tier":      p,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
