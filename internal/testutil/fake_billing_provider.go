package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flexprice/plansync/internal/domain/billing"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/types"
	"github.com/samber/lo"
)

var _ billing.Provider = (*FakeBillingProvider)(nil)

const (
	OpGetSubscription    = "get_subscription"
	OpListSubscriptions  = "list_subscriptions"
	OpCreateCustomer     = "create_customer"
	OpCreateCheckout     = "create_checkout_session"
	OpValidateCoupon     = "validate_coupon"
	OpCancelSubscription = "cancel_subscription"
)

// FakeBillingProvider is a scripted billing provider holding subscriptions in memory
type FakeBillingProvider struct {
	mu            sync.Mutex
	subscriptions map[string]*billing.SubscriptionSnapshot
	customers     map[string]string // idempotency key -> customer id
	coupons       map[string]bool
	failures      map[string]error
	calls         map[string]int
	sessions      []billing.CheckoutSessionRequest
	seq           int
}

func NewFakeBillingProvider() *FakeBillingProvider {
	p := &FakeBillingProvider{}
	p.Reset()
	return p
}

// Reset forgets every subscription, customer, failure and recorded call
func (p *FakeBillingProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*billing.SubscriptionSnapshot)
	p.customers = make(map[string]string)
	p.coupons = make(map[string]bool)
	p.failures = make(map[string]error)
	p.calls = make(map[string]int)
	p.sessions = nil
	p.seq = 0
}

// PutSubscription sets the provider's true state of a subscription
func (p *FakeBillingProvider) PutSubscription(snap billing.SubscriptionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[snap.ProviderSubscriptionID] = &snap
}

// AddCoupon registers a coupon; invalid coupons exist but cannot be redeemed
func (p *FakeBillingProvider) AddCoupon(id string, valid bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coupons[id] = valid
}

// Fail makes every call of op return err until cleared with a nil err
func (p *FakeBillingProvider) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls returns how many times op was invoked
func (p *FakeBillingProvider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Sessions returns the checkout sessions requested so far
func (p *FakeBillingProvider) Sessions() []billing.CheckoutSessionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]billing.CheckoutSessionRequest(nil), p.sessions...)
}

// ProviderUnavailable builds the error a provider outage surfaces as
func ProviderUnavailable() error {
	return ierr.NewError("billing provider unavailable").
		WithHint("Billing provider request failed").
		Mark(ierr.ErrProvider)
}

func (p *FakeBillingProvider) enter(ctx context.Context, op string) error {
	p.calls[op]++
	if err := ctx.Err(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrProvider)
	}
	return p.failures[op]
}

func (p *FakeBillingProvider) GetSubscription(ctx context.Context, providerSubscriptionID string) (*billing.SubscriptionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpGetSubscription); err != nil {
		return nil, err
	}

	snap, ok := p.subscriptions[providerSubscriptionID]
	if !ok {
		return nil, ierr.NewError("no such subscription").
			WithHintf("Subscription %s does not exist", providerSubscriptionID).
			Mark(ierr.ErrProvider)
	}
	copied := *snap
	return &copied, nil
}

func (p *FakeBillingProvider) ListSubscriptions(ctx context.Context, providerCustomerID string) ([]*billing.SubscriptionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpListSubscriptions); err != nil {
		return nil, err
	}

	var out []*billing.SubscriptionSnapshot
	for _, snap := range p.subscriptions {
		if snap.ProviderCustomerID != providerCustomerID || snap.Status == types.SubscriptionStatusCanceled {
			continue
		}
		copied := *snap
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (p *FakeBillingProvider) CreateCustomer(ctx context.Context, req billing.CreateCustomerRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpCreateCustomer); err != nil {
		return "", err
	}

	if id, ok := p.customers[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return id, nil
	}
	p.seq++
	id := fmt.Sprintf("cus_test_%d", p.seq)
	p.customers[req.IdempotencyKey] = id
	return id, nil
}

func (p *FakeBillingProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutSessionRequest) (*billing.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpCreateCheckout); err != nil {
		return nil, err
	}

	p.seq++
	p.sessions = append(p.sessions, req)
	id := fmt.Sprintf("cs_test_%d", p.seq)
	return &billing.CheckoutSession{
		ID:           id,
		ClientSecret: id + "_secret",
	}, nil
}

func (p *FakeBillingProvider) ValidateCoupon(ctx context.Context, couponID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpValidateCoupon); err != nil {
		return err
	}

	valid, ok := p.coupons[couponID]
	if !ok || !valid {
		return ierr.NewError("invalid coupon").
			WithHintf("Coupon %s cannot be redeemed", couponID).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (p *FakeBillingProvider) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpCancelSubscription); err != nil {
		return err
	}

	snap, ok := p.subscriptions[providerSubscriptionID]
	if !ok {
		return ierr.NewError("no such subscription").
			WithHintf("Subscription %s does not exist", providerSubscriptionID).
			Mark(ierr.ErrProvider)
	}
	snap.Status = types.SubscriptionStatusCanceled
	snap.CanceledAt = lo.ToPtr(time.Now().UTC().Truncate(time.Second))
	return nil
}
