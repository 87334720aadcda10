package service

import (
	"context"
	"strings"

	"github.com/flexprice/plansync/internal/api/dto"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/types"
)

type quotaService struct {
	ServiceParams
}

func NewQuotaService(params ServiceParams) interfaces.QuotaService {
	return &quotaService{
		ServiceParams: params,
	}
}

// CheckAndConsume decides one use of a gated feature. Paid tiers are never limited.
// On the free tier the counter is compared and incremented under the user's row
// lock, so concurrent requests of one user cannot both take the last unit.
func (s *quotaService) CheckAndConsume(ctx context.Context, userID string, feature string) (*dto.QuotaDecisionResponse, error) {
	key := types.FeatureKey(strings.TrimSpace(feature))
	if key == "" {
		return nil, ierr.NewError("feature is required").
			WithHint("Feature is required").
			Mark(ierr.ErrValidation)
	}

	var decision *dto.QuotaDecisionResponse
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.UserRepo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		used := u.FreeGenerationCounters.Get(key)
		decision = &dto.QuotaDecisionResponse{
			Feature:   key,
			PlanTier:  u.PlanTier,
			Used:      used,
			Remaining: types.UnlimitedQuota,
		}

		if u.PlanTier.IsPaid() {
			decision.Allowed = true
			return nil
		}

		limit := s.Config.Billing.FreeLimit(key)
		if used >= limit {
			decision.RequiresUpgrade = true
			decision.Remaining = 0
			return nil
		}

		if u.FreeGenerationCounters == nil {
			u.FreeGenerationCounters = make(types.Counters)
		}
		u.FreeGenerationCounters[key] = used + 1
		if err := s.UserRepo.Update(ctx, u); err != nil {
			return err
		}

		decision.Allowed = true
		decision.Used = used + 1
		decision.Remaining = limit - decision.Used
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.RecordQuotaDecision(key, decision.Allowed)
	if !decision.Allowed {
		s.Logger.Infow("quota exceeded",
			"user_id", userID,
			"feature", key,
			"plan_tier", decision.PlanTier,
			"used", decision.Used)
	}
	return decision, nil
}

// GetStatus reads the current plan and remaining free quota of every configured feature
func (s *quotaService) GetStatus(ctx context.Context, userID string) (*dto.BillingStatusResponse, error) {
	u, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.BillingStatusResponse{
		PlanTier:                u.PlanTier,
		UpdatedAt:               u.UpdatedAt,
		QuotaRemainingByFeature: make(map[string]int64, len(s.Config.Billing.FreeLimits)),
	}

	for feature := range s.Config.Billing.FreeLimits {
		key := types.FeatureKey(feature)
		if u.PlanTier.IsPaid() {
			resp.QuotaRemainingByFeature[feature] = types.UnlimitedQuota
			continue
		}
		remaining := s.Config.Billing.FreeLimit(key) - u.FreeGenerationCounters.Get(key)
		resp.QuotaRemainingByFeature[feature] = max(remaining, 0)
	}

	sub, err := s.SubRepo.GetByUserID(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if sub != nil {
		resp.Subscription = &dto.SubscriptionResponse{Subscription: sub}
	}
	return resp, nil
}
