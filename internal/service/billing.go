package service

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/api/dto"
	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/flexprice/plansync/internal/domain/user"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/idempotency"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/samber/lo"
)

type billingService struct {
	ServiceParams
	reconciler interfaces.ReconcilerService
}

func NewBillingService(params ServiceParams, reconciler interfaces.ReconcilerService) interfaces.BillingService {
	return &billingService{
		ServiceParams: params,
		reconciler:    reconciler,
	}
}

// CreateCheckout opens a provider checkout session for one of the configured prices.
// It never changes local plan state; the purchase arrives later as billing events.
func (s *billingService) CreateCheckout(ctx context.Context, userID string, req dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !s.Resolver.IsPurchasable(req.PriceID) {
		return nil, ierr.NewError("unknown price").
			WithHintf("Price %s is not available for purchase", req.PriceID).
			WithReportableDetails(map[string]any{"price_id": req.PriceID}).
			Mark(ierr.ErrValidation)
	}

	u, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.CouponID != "" {
		if err := s.Provider.ValidateCoupon(ctx, req.CouponID); err != nil {
			return nil, err
		}
	}

	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	key := s.Idempotency.GenerateKey(idempotency.ScopeCheckoutSession, map[string]interface{}{
		"user_id":   u.ID,
		"price_id":  req.PriceID,
		"coupon_id": req.CouponID,
		"bucket":    idempotency.Bucket(time.Now().UTC(), idempotency.CheckoutWindow),
	})

	session, err := s.Provider.CreateCheckoutSession(ctx, billing.CheckoutSessionRequest{
		UserID:         u.ID,
		CustomerID:     customerID,
		PriceID:        req.PriceID,
		CouponID:       req.CouponID,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("checkout session created",
		"user_id", u.ID,
		"price_id", req.PriceID,
		"session_id", session.ID)

	return &dto.CheckoutResponse{
		SessionID:    session.ID,
		ClientSecret: session.ClientSecret,
		RedirectURL:  session.URL,
	}, nil
}

// ensureCustomer returns the user's provider customer, creating and linking one on
// first checkout. A concurrent checkout that linked first wins.
func (s *billingService) ensureCustomer(ctx context.Context, u *user.User) (string, error) {
	if u.HasProviderCustomer() {
		return u.GetProviderCustomerID(), nil
	}

	key := s.Idempotency.GenerateKey(idempotency.ScopeProviderCustomer, map[string]interface{}{
		"user_id": u.ID,
	})
	customerID, err := s.Provider.CreateCustomer(ctx, billing.CreateCustomerRequest{
		UserID:         u.ID,
		Email:          u.Email,
		IdempotencyKey: key,
	})
	if err != nil {
		return "", err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.UserRepo.GetForUpdate(ctx, u.ID)
		if err != nil {
			return err
		}
		if locked.HasProviderCustomer() {
			customerID = locked.GetProviderCustomerID()
			return nil
		}
		locked.ProviderCustomerID = lo.ToPtr(customerID)
		return s.UserRepo.Update(ctx, locked)
	})
	if err != nil {
		return "", err
	}
	return customerID, nil
}

// CancelSubscription ends the caller's paid subscription at the provider right away
// and reconciles immediately so the response already reflects the free plan. The
// deletion event that follows is a no-op.
func (s *billingService) CancelSubscription(ctx context.Context, userID string) (*dto.CancelSubscriptionResponse, error) {
	sub, err := s.SubRepo.GetByUserID(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if sub == nil || sub.IsSynthetic() || !s.Resolver.Resolve(sub.PriceID, sub.Status).IsPaid() {
		return nil, ierr.NewError("no active paid subscription").
			WithHint("There is no active paid subscription to cancel").
			WithReportableDetails(map[string]any{"user_id": userID}).
			Mark(ierr.ErrNotFound)
	}

	providerSubscriptionID := sub.GetProviderSubscriptionID()
	if err := s.Provider.CancelSubscription(ctx, providerSubscriptionID); err != nil {
		return nil, err
	}

	s.Logger.Infow("canceled subscription at provider",
		"user_id", userID,
		"provider_subscription_id", providerSubscriptionID)

	resp := &dto.CancelSubscriptionResponse{
		CanceledSubscriptionID: providerSubscriptionID,
		Message:                "subscription canceled",
	}

	result, err := s.reconciler.ReconcileOnDemand(ctx, userID, TriggerCancel)
	if err != nil {
		// the deletion event will still converge the local state
		s.Logger.Warnw("reconciliation after cancel failed",
			"user_id", userID,
			"error", err)
		u, getErr := s.UserRepo.Get(ctx, userID)
		if getErr != nil {
			return nil, getErr
		}
		resp.PlanTier = u.PlanTier
		return resp, nil
	}

	resp.PlanTier = result.PlanTier
	return resp, nil
}
