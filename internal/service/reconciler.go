package service

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/flexprice/plansync/internal/domain/subscription"
	"github.com/flexprice/plansync/internal/domain/user"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/types"
	"github.com/samber/lo"
)

// Triggers of on-demand reconciliation, used as metric and log labels
const (
	TriggerOnDemand = "on_demand"
	TriggerCancel   = "cancel"
	TriggerSweep    = "sweep"
)

var errUnknownUser = ierr.NewError("billing event subject not found").
	WithHint("The billing event does not reference a known user").
	Mark(ierr.ErrNotFound)

// applyMode says how much a provider snapshot can be trusted
type applyMode int

const (
	// modeEvent applies data carried inside an event; recency is checked against the watermark
	modeEvent applyMode = iota
	// modeFetched applies a subscription just re-fetched from the provider
	modeFetched
	// modeAuthoritative applies the subscription picked from the provider's complete list
	modeAuthoritative
)

type reconcilerService struct {
	ServiceParams
}

func NewReconcilerService(params ServiceParams) interfaces.ReconcilerService {
	return &reconcilerService{
		ServiceParams: params,
	}
}

// userState is the locked view of one user inside a reconciliation transaction
type userState struct {
	user *user.User
	// current is nil when the user has no subscription row
	current *subscription.Subscription
}

func (s *reconcilerService) EnsureUser(ctx context.Context, userID, email string) (*user.User, error) {
	if userID == "" {
		return nil, ierr.NewError("user id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}

	u, err := s.UserRepo.Get(ctx, userID)
	if err == nil {
		if _, err := s.SubRepo.GetByUserID(ctx, userID); err == nil {
			return u, nil
		} else if !ierr.IsNotFound(err) {
			return nil, err
		}
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	var out *user.User
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		created, err := s.UserRepo.CreateIfAbsent(ctx, user.NewUser(userID, email, now))
		if err != nil {
			return err
		}

		st, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}

		if st.current == nil {
			free := subscription.NewFreeSubscription(userID, now)
			if err := s.SubRepo.Create(ctx, free); err != nil {
				return err
			}
			st.current = free
			if _, err := s.reproject(ctx, st); err != nil {
				return err
			}
		}

		if created {
			s.Logger.Infow("created user with free subscription", "user_id", userID)
		}
		out = st.user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reconcilerService) HandleCheckoutCompleted(ctx context.Context, event *billing.CheckoutCompleted) (*billing.Result, error) {
	start := time.Now()
	result := billing.NewResult(event.EventMeta)

	if event.ProviderSubscriptionID == "" {
		result.Outcome = types.ReconciliationOutcomeIgnored
		return s.finish(result, start, nil)
	}

	userID, err := s.subjectUser(ctx, event.ProviderCustomerID, event.SubjectUserID)
	if err != nil {
		return s.finish(result, start, err)
	}
	result.UserID = userID

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		st, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}

		// line items in the event may already be outdated; only the provider's
		// current view of the subscription is applied
		snap, err := s.Provider.GetSubscription(ctx, event.ProviderSubscriptionID)
		if err != nil {
			return err
		}
		if err := s.linkCustomer(ctx, st, snap.ProviderCustomerID); err != nil {
			return err
		}

		result.Outcome, err = s.applySnapshot(ctx, st, snap, event.CreatedAt, modeFetched)
		result.PlanTier = st.user.PlanTier
		return err
	})
	return s.finish(result, start, err)
}

func (s *reconcilerService) HandleSubscriptionChanged(ctx context.Context, event *billing.SubscriptionChanged) (*billing.Result, error) {
	snap := event.Subscription
	if snap.Status.IsTerminal() {
		return s.HandleSubscriptionDeleted(ctx, &billing.SubscriptionDeleted{
			EventMeta:              event.EventMeta,
			ProviderSubscriptionID: snap.ProviderSubscriptionID,
		})
	}

	start := time.Now()
	result := billing.NewResult(event.EventMeta)

	userID, err := s.ownerOf(ctx, snap.ProviderSubscriptionID, snap.ProviderCustomerID, event.SubjectUserID, snap.UserID)
	if err != nil {
		return s.finish(result, start, err)
	}
	result.UserID = userID

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		st, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.linkCustomer(ctx, st, snap.ProviderCustomerID); err != nil {
			return err
		}

		result.Outcome, err = s.applySnapshot(ctx, st, &snap, event.CreatedAt, modeEvent)
		result.PlanTier = st.user.PlanTier
		return err
	})
	return s.finish(result, start, err)
}

func (s *reconcilerService) HandleSubscriptionDeleted(ctx context.Context, event *billing.SubscriptionDeleted) (*billing.Result, error) {
	start := time.Now()
	result := billing.NewResult(event.EventMeta)

	userID, err := s.ownerOf(ctx, event.ProviderSubscriptionID, event.ProviderCustomerID, event.SubjectUserID)
	if err != nil {
		return s.finish(result, start, err)
	}
	result.UserID = userID

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		st, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		defer func() { result.PlanTier = st.user.PlanTier }()

		cur := st.current
		if cur == nil || cur.IsProvider(event.ProviderSubscriptionID) {
			result.Outcome, err = s.retire(ctx, st, event.CreatedAt)
			return err
		}

		// the user holds something else; a deletion never touches it
		result.Outcome = types.ReconciliationOutcomeNoop
		if cur.IsSynthetic() && cur.IsStrictlyNewer(event.CreatedAt) {
			// keeps older events about the deleted subscription from bringing it back
			cur.ProviderEventAt = lo.ToPtr(event.CreatedAt.UTC())
			return s.SubRepo.Update(ctx, cur)
		}
		return nil
	})
	return s.finish(result, start, err)
}

func (s *reconcilerService) HandlePaymentSucceeded(ctx context.Context, event *billing.PaymentSucceeded) (*billing.Result, error) {
	start := time.Now()
	result := billing.NewResult(event.EventMeta)

	if event.ProviderSubscriptionID == "" {
		result.Outcome = types.ReconciliationOutcomeIgnored
		return s.finish(result, start, nil)
	}

	userID, err := s.ownerOf(ctx, event.ProviderSubscriptionID, event.ProviderCustomerID, event.SubjectUserID)
	if err != nil {
		return s.finish(result, start, err)
	}
	result.UserID = userID

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		st, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		defer func() { result.PlanTier = st.user.PlanTier }()

		cur := st.current
		if cur != nil && cur.IsProvider(event.ProviderSubscriptionID) {
			// a payment only confirms; anything at least as recent wins over it
			if !cur.IsStrictlyNewer(event.CreatedAt) {
				result.Outcome = types.ReconciliationOutcomeStale
				return nil
			}

			next := *cur
			next.Status = types.SubscriptionStatusActive
			if event.PriceID != "" {
				next.PriceID = event.PriceID
			}
			if cur.SameState(&next) {
				result.Outcome, err = s.confirm(ctx, st, event.CreatedAt)
				return err
			}
			next.ProviderEventAt = lo.ToPtr(event.CreatedAt.UTC())
			result.Outcome = types.ReconciliationOutcomeApplied
			return s.write(ctx, st, &next, false)
		}

		// payment for a subscription that is not recorded yet
		snap, err := s.Provider.GetSubscription(ctx, event.ProviderSubscriptionID)
		if err != nil {
			return err
		}
		if err := s.linkCustomer(ctx, st, snap.ProviderCustomerID); err != nil {
			return err
		}
		result.Outcome, err = s.applySnapshot(ctx, st, snap, event.CreatedAt, modeFetched)
		return err
	})
	return s.finish(result, start, err)
}

func (s *reconcilerService) ReconcileOnDemand(ctx context.Context, userID string, trigger string) (*billing.Result, error) {
	start := time.Now()
	defer s.Metrics.ObserveReconcile(trigger, start)

	result := &billing.Result{UserID: userID}
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		st, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		defer func() { result.PlanTier = st.user.PlanTier }()

		// the provider's list carries no event time, so the watermark stays where
		// the last event left it
		var snap *billing.SubscriptionSnapshot
		if st.user.HasProviderCustomer() {
			subs, err := s.Provider.ListSubscriptions(ctx, st.user.GetProviderCustomerID())
			if err != nil {
				return err
			}
			snap = pickSubscription(subs)
		}

		if snap == nil {
			result.Outcome, err = s.forceFree(ctx, st, time.Time{})
			return err
		}
		result.Outcome, err = s.applySnapshot(ctx, st, snap, time.Time{}, modeAuthoritative)
		return err
	})
	if err != nil {
		s.Logger.Errorw("on-demand reconciliation failed",
			"user_id", userID,
			"trigger", trigger,
			"error", err)
		return nil, err
	}

	s.Logger.Infow("reconciled user with billing provider",
		"user_id", userID,
		"trigger", trigger,
		"outcome", result.Outcome,
		"plan_tier", result.PlanTier)
	return result, nil
}

// applySnapshot makes the user's row mirror a provider subscription
func (s *reconcilerService) applySnapshot(
	ctx context.Context,
	st *userState,
	snap *billing.SubscriptionSnapshot,
	at time.Time,
	mode applyMode,
) (types.ReconciliationOutcome, error) {
	cur := st.current
	next := s.fromSnapshot(st.user.ID, snap)

	if cur != nil && cur.IsProvider(snap.ProviderSubscriptionID) {
		if mode == modeEvent && cur.IsStale(at) {
			return types.ReconciliationOutcomeStale, nil
		}
		if snap.Status.IsTerminal() {
			return s.retire(ctx, st, at)
		}

		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		if cur.SameState(next) {
			return s.confirm(ctx, st, at)
		}
		next.ProviderEventAt = cur.Watermark(at)
		return types.ReconciliationOutcomeApplied, s.write(ctx, st, next, false)
	}

	// the user does not hold this subscription yet
	if snap.Status.IsTerminal() {
		return types.ReconciliationOutcomeStale, nil
	}
	if mode == modeEvent && cur != nil && cur.IsStale(at) {
		return types.ReconciliationOutcomeStale, nil
	}
	if mode != modeAuthoritative && !supersedes(cur, next) {
		return types.ReconciliationOutcomeStale, nil
	}

	next.ProviderEventAt = watermark(cur, at)
	return types.ReconciliationOutcomeApplied, s.write(ctx, st, next, true)
}

// retire replaces the user's subscription with a fresh synthetic free row
func (s *reconcilerService) retire(ctx context.Context, st *userState, at time.Time) (types.ReconciliationOutcome, error) {
	free := subscription.NewFreeSubscription(st.user.ID, time.Now().UTC())
	free.ProviderEventAt = watermark(st.current, at)
	return types.ReconciliationOutcomeApplied, s.write(ctx, st, free, true)
}

// forceFree is reconciliation against a provider that has no live subscription for the user
func (s *reconcilerService) forceFree(ctx context.Context, st *userState, at time.Time) (types.ReconciliationOutcome, error) {
	if st.current != nil && st.current.IsSynthetic() {
		return s.reproject(ctx, st)
	}
	return s.retire(ctx, st, at)
}

// confirm handles information that matches the stored row. The watermark still
// moves to at, so older events arriving later cannot override what it confirmed.
func (s *reconcilerService) confirm(ctx context.Context, st *userState, at time.Time) (types.ReconciliationOutcome, error) {
	if st.current.IsStrictlyNewer(at) {
		st.current.ProviderEventAt = lo.ToPtr(at.UTC())
		if err := s.SubRepo.Update(ctx, st.current); err != nil {
			return "", err
		}
	}
	return s.reproject(ctx, st)
}

// reproject repairs a plan tier that no longer matches the stored subscription
func (s *reconcilerService) reproject(ctx context.Context, st *userState) (types.ReconciliationOutcome, error) {
	tier := s.Resolver.Resolve(st.current.PriceID, st.current.Status)
	if st.user.PlanTier == tier {
		return types.ReconciliationOutcomeNoop, nil
	}

	s.Logger.Warnw("plan tier drifted from subscription, repairing",
		"user_id", st.user.ID,
		"cached_plan_tier", st.user.PlanTier,
		"plan_tier", tier,
		"price_id", st.current.PriceID)
	return types.ReconciliationOutcomeApplied, s.project(ctx, st.user, st.current)
}

// write stores next as the user's subscription and derives the plan tier from it,
// both inside the caller's transaction
func (s *reconcilerService) write(ctx context.Context, st *userState, next *subscription.Subscription, replace bool) error {
	if replace || st.current == nil {
		if err := s.SubRepo.Replace(ctx, next); err != nil {
			return err
		}
	} else if err := s.SubRepo.Update(ctx, next); err != nil {
		return err
	}
	st.current = next
	return s.project(ctx, st.user, next)
}

func (s *reconcilerService) project(ctx context.Context, u *user.User, sub *subscription.Subscription) error {
	tier := s.Resolver.Resolve(sub.PriceID, sub.Status)
	if u.PlanTier != tier {
		s.Logger.Infow("plan tier changed",
			"user_id", u.ID,
			"from", u.PlanTier,
			"plan_tier", tier,
			"price_id", sub.PriceID,
			"provider_subscription_id", sub.GetProviderSubscriptionID())
		s.Metrics.RecordPlanTransition(u.PlanTier, tier)
	}

	u.PlanTier = tier
	u.UpdatedAt = time.Now().UTC()
	return s.UserRepo.Update(ctx, u)
}

func (s *reconcilerService) lockUser(ctx context.Context, userID string) (*userState, error) {
	u, err := s.UserRepo.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	cur, err := s.SubRepo.GetByUserID(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	return &userState{user: u, current: cur}, nil
}

// linkCustomer remembers the provider customer of a user that has none yet
func (s *reconcilerService) linkCustomer(ctx context.Context, st *userState, customerID string) error {
	if customerID == "" || st.user.HasProviderCustomer() {
		return nil
	}
	st.user.ProviderCustomerID = lo.ToPtr(customerID)
	return s.UserRepo.Update(ctx, st.user)
}

// ownerOf finds the user a provider subscription belongs to: the local row first,
// then the user id stamped into provider metadata, then the customer link
func (s *reconcilerService) ownerOf(ctx context.Context, providerSubscriptionID, customerID string, userIDs ...string) (string, error) {
	if providerSubscriptionID != "" {
		sub, err := s.SubRepo.GetByProviderSubscriptionID(ctx, providerSubscriptionID)
		if err == nil {
			return sub.UserID, nil
		}
		if !ierr.IsNotFound(err) {
			return "", err
		}
	}
	return s.subjectUser(ctx, customerID, userIDs...)
}

func (s *reconcilerService) subjectUser(ctx context.Context, customerID string, userIDs ...string) (string, error) {
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		_, err := s.UserRepo.Get(ctx, id)
		if err == nil {
			return id, nil
		}
		if !ierr.IsNotFound(err) {
			return "", err
		}
	}

	if customerID != "" {
		u, err := s.UserRepo.GetByProviderCustomerID(ctx, customerID)
		if err == nil {
			return u.ID, nil
		}
		if !ierr.IsNotFound(err) {
			return "", err
		}
	}
	return "", errUnknownUser
}

func (s *reconcilerService) fromSnapshot(userID string, snap *billing.SubscriptionSnapshot) *subscription.Subscription {
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &subscription.Subscription{
		ID:                     snap.ProviderSubscriptionID,
		UserID:                 userID,
		Status:                 snap.Status,
		PriceID:                snap.PriceID,
		ProviderSubscriptionID: lo.ToPtr(snap.ProviderSubscriptionID),
		CurrentPeriodStart:     snap.CurrentPeriodStart,
		CurrentPeriodEnd:       snap.CurrentPeriodEnd,
		CancelAtPeriodEnd:      snap.CancelAtPeriodEnd,
		CancelAt:               snap.CancelAt,
		CanceledAt:             snap.CanceledAt,
		CreatedAt:              createdAt,
	}
}

// finish turns reconciliation failures into outcomes. Provider failures leave the
// event unresolved for on-demand repair and missing users drop it; anything else
// is a system error the delivery should be retried for.
func (s *reconcilerService) finish(result *billing.Result, start time.Time, err error) (*billing.Result, error) {
	s.Metrics.ObserveReconcile(string(result.Kind), start)

	switch {
	case err == nil:
		s.Logger.Infow("reconciled billing event",
			"event_id", result.EventID,
			"event_type", result.Kind,
			"user_id", result.UserID,
			"outcome", result.Outcome,
			"plan_tier", result.PlanTier)
		return result, nil

	case ierr.IsProvider(err):
		result.Outcome = types.ReconciliationOutcomeUnresolved
		result.PlanTier = ""
		s.Logger.Errorw("billing event unresolved, left for on-demand reconciliation",
			"event_id", result.EventID,
			"event_type", result.Kind,
			"user_id", result.UserID,
			"outcome", result.Outcome,
			"error", err)
		s.Sentry.CaptureWithTags(err, map[string]string{
			"event_id":   result.EventID,
			"event_type": string(result.Kind),
			"user_id":    result.UserID,
		})
		return result, nil

	case ierr.IsNotFound(err) || ierr.IsAlreadyExists(err):
		result.Outcome = types.ReconciliationOutcomeDropped
		result.PlanTier = ""
		s.Logger.Warnw("billing event dropped",
			"event_id", result.EventID,
			"event_type", result.Kind,
			"user_id", result.UserID,
			"outcome", result.Outcome,
			"error", err)
		return result, nil

	default:
		s.Logger.Errorw("failed to reconcile billing event",
			"event_id", result.EventID,
			"event_type", result.Kind,
			"user_id", result.UserID,
			"error", err)
		return nil, err
	}
}

// supersedes reports whether a subscription the user does not hold may take the
// place of the current row. An entitled row only yields to a newer entitled one.
func supersedes(cur, next *subscription.Subscription) bool {
	if cur == nil || cur.IsSynthetic() || !cur.Status.IsEntitled() {
		return true
	}
	return next.Status.IsEntitled() && !next.CreatedAt.Before(cur.CreatedAt)
}

func watermark(cur *subscription.Subscription, at time.Time) *time.Time {
	if cur != nil {
		return cur.Watermark(at)
	}
	if at.IsZero() {
		return nil
	}
	return lo.ToPtr(at.UTC())
}

// pickSubscription chooses the subscription that decides the plan among the ones a
// provider lists for a customer: entitled before anything else, then the newest
func pickSubscription(subs []*billing.SubscriptionSnapshot) *billing.SubscriptionSnapshot {
	var best *billing.SubscriptionSnapshot
	for _, snap := range subs {
		if snap == nil || snap.Status.IsTerminal() {
			continue
		}
		if best == nil {
			best = snap
			continue
		}
		if snap.Status.IsEntitled() != best.Status.IsEntitled() {
			if snap.Status.IsEntitled() {
				best = snap
			}
			continue
		}
		if snap.CreatedAt.After(best.CreatedAt) {
			best = snap
		}
	}
	return best
}
