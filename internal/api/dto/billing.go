package dto

import (
	"strings"
	"time"

	"github.com/flexprice/plansync/internal/domain/subscription"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/types"
	"github.com/flexprice/plansync/internal/validator"
)

// CreateCheckoutRequest starts a subscription purchase for the caller
type CreateCheckoutRequest struct {
	PriceID  string `json:"price_id" validate:"required,max=255"`
	CouponID string `json:"coupon_id,omitempty" validate:"omitempty,max=255"`
}

func (r *CreateCheckoutRequest) Validate() error {
	r.PriceID = strings.TrimSpace(r.PriceID)
	r.CouponID = strings.TrimSpace(r.CouponID)

	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.PriceID == types.FreePriceID {
		return ierr.NewError("free plan cannot be purchased").
			WithHint("Choose a paid price to check out").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CheckoutResponse carries whichever of client_secret (embedded checkout) or
// redirect_url (hosted checkout) the provider issued
type CheckoutResponse struct {
	SessionID    string `json:"session_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
}

type CancelSubscriptionResponse struct {
	PlanTier               types.PlanTier `json:"plan_tier"`
	CanceledSubscriptionID string         `json:"canceled_subscription_id"`
	Message                string         `json:"message"`
}

// BillingStatusResponse is the caller's plan and remaining free quota.
// A remaining quota of -1 means unlimited.
type BillingStatusResponse struct {
	PlanTier                types.PlanTier        `json:"plan_tier"`
	UpdatedAt               time.Time             `json:"updated_at"`
	QuotaRemainingByFeature map[string]int64      `json:"quota_remaining_by_feature"`
	Subscription            *SubscriptionResponse `json:"subscription,omitempty"`
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

type ReconcileResponse struct {
	UserID   string                      `json:"user_id"`
	PlanTier types.PlanTier              `json:"plan_tier"`
	Outcome  types.ReconciliationOutcome `json:"outcome"`
}

// SweepResponse summarizes one drift sweep over every linked user
type SweepResponse struct {
	SweepID   string    `json:"sweep_id"`
	Checked   int64     `json:"checked"`
	Changed   int64     `json:"changed"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// WebhookResponse acknowledges a billing provider delivery
type WebhookResponse struct {
	Received bool                        `json:"received"`
	EventID  string                      `json:"event_id,omitempty"`
	Outcome  types.ReconciliationOutcome `json:"outcome,omitempty"`
}
