package webhook

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/flexprice/plansync/internal/cache"
	"github.com/flexprice/plansync/internal/domain/billing"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/service"
	"github.com/flexprice/plansync/internal/testutil"
	"github.com/flexprice/plansync/internal/types"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HandlerSuite struct {
	testutil.BaseServiceTestSuite
	reconciler interfaces.ReconcilerService
	handler    *Handler
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	params := service.NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetMetrics(),
		s.GetSentry(),
		stores.UserRepo,
		stores.SubscriptionRepo,
		s.GetProvider(),
		s.GetResolver(),
	)
	s.reconciler = service.NewReconcilerService(params)
	deliveries := cache.NewDeliveryLogWithCache(cache.NewInMemoryCache(s.GetConfig(), s.GetLogger()), time.Minute)
	s.handler = NewHandler(s.reconciler, deliveries, s.GetSentry(), s.GetMetrics(), s.GetLogger())

	_, err := s.reconciler.EnsureUser(s.GetContext(), testutil.TestUserID, testutil.TestUserEmail)
	s.Require().NoError(err)
}

func (s *HandlerSuite) event(id string, eventType stripeapi.EventType, object string) *stripeapi.Event {
	return &stripeapi.Event{
		ID:      id,
		Type:    eventType,
		Created: s.GetNow().Unix(),
		Data:    &stripeapi.EventData{Raw: json.RawMessage(object)},
	}
}

func (s *HandlerSuite) subscriptionObject(id, priceID, status string) string {
	start := s.GetNow().Unix()
	end := s.GetNow().AddDate(0, 1, 0).Unix()
	return fmt.Sprintf(`{
		"id": %q,
		"object": "subscription",
		"status": %q,
		"customer": "cus_test",
		"created": %d,
		"metadata": {"user_id": %q},
		"items": {"object": "list", "data": [{
			"id": "si_1",
			"object": "subscription_item",
			"price": {"id": %q, "object": "price"},
			"current_period_start": %d,
			"current_period_end": %d
		}]}
	}`, id, status, start, testutil.TestUserID, priceID, start, end)
}

func (s *HandlerSuite) planTier() types.PlanTier {
	u, err := s.GetStores().UserRepo.Get(s.GetContext(), testutil.TestUserID)
	s.Require().NoError(err)
	return u.PlanTier
}

func (s *HandlerSuite) putSubscription(id, priceID string) {
	s.GetProvider().PutSubscription(billing.SubscriptionSnapshot{
		ProviderSubscriptionID: id,
		ProviderCustomerID:     "cus_test",
		UserID:                 testutil.TestUserID,
		PriceID:                priceID,
		Status:                 types.SubscriptionStatusActive,
		CurrentPeriodStart:     s.GetNow(),
		CurrentPeriodEnd:       s.GetNow().AddDate(1, 0, 0),
		CreatedAt:              s.GetNow(),
	})
}

func (s *HandlerSuite) TestCheckoutCompleted() {
	s.putSubscription("sub_1", testutil.TestPriceYearly)
	event := s.event("evt_1", stripeapi.EventTypeCheckoutSessionCompleted, fmt.Sprintf(`{
		"id": "cs_1",
		"object": "checkout.session",
		"mode": "subscription",
		"client_reference_id": %q,
		"customer": "cus_test",
		"subscription": "sub_1"
	}`, testutil.TestUserID))

	result, err := s.handler.HandleWebhookEvent(s.GetContext(), event)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeApplied, result.Outcome)
	s.Equal(types.BillingEventKindCheckoutCompleted, result.Kind)
	s.Equal(types.PlanTierYearly, s.planTier())

	// a redelivery is acknowledged without another provider round trip
	result, err = s.handler.HandleWebhookEvent(s.GetContext(), event)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeDuplicate, result.Outcome)
	s.Equal(1, s.GetProvider().Calls(testutil.OpGetSubscription))
}

func (s *HandlerSuite) TestSubscriptionLifecycle() {
	created := s.event("evt_1", stripeapi.EventTypeCustomerSubscriptionCreated,
		s.subscriptionObject("sub_2", testutil.TestPriceMonthly, "active"))
	result, err := s.handler.HandleWebhookEvent(s.GetContext(), created)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeApplied, result.Outcome)
	s.Equal(types.PlanTierMonthly, s.planTier())

	updated := s.event("evt_2", stripeapi.EventTypeCustomerSubscriptionUpdated,
		s.subscriptionObject("sub_2", testutil.TestPriceYearly, "active"))
	updated.Created++
	result, err = s.handler.HandleWebhookEvent(s.GetContext(), updated)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeApplied, result.Outcome)
	s.Equal(types.PlanTierYearly, s.planTier())

	deleted := s.event("evt_3", stripeapi.EventTypeCustomerSubscriptionDeleted,
		s.subscriptionObject("sub_2", testutil.TestPriceYearly, "canceled"))
	deleted.Created += 2
	result, err = s.handler.HandleWebhookEvent(s.GetContext(), deleted)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeApplied, result.Outcome)
	s.Equal(types.PlanTierFree, s.planTier())
}

func (s *HandlerSuite) TestInvoicePaid() {
	s.putSubscription("sub_3", testutil.TestPriceMonthly)
	event := s.event("evt_1", stripeapi.EventTypeInvoicePaid, fmt.Sprintf(`{
		"id": "in_1",
		"object": "invoice",
		"customer": "cus_test",
		"parent": {"subscription_details": {"subscription": "sub_3", "metadata": {"user_id": %q}}},
		"lines": {"data": [{"pricing": {"price_details": {"price": %q}}}]}
	}`, testutil.TestUserID, testutil.TestPriceMonthly))

	result, err := s.handler.HandleWebhookEvent(s.GetContext(), event)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeApplied, result.Outcome)
	s.Equal(types.PlanTierMonthly, s.planTier())
}

func (s *HandlerSuite) TestUnresolvedEventCanBeRedelivered() {
	s.putSubscription("sub_1", testutil.TestPriceYearly)
	s.GetProvider().Fail(testutil.OpGetSubscription, testutil.ProviderUnavailable())
	event := s.event("evt_1", stripeapi.EventTypeCheckoutSessionCompleted, fmt.Sprintf(
		`{"id": "cs_1", "object": "checkout.session", "client_reference_id": %q, "subscription": "sub_1"}`,
		testutil.TestUserID))

	result, err := s.handler.HandleWebhookEvent(s.GetContext(), event)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeUnresolved, result.Outcome)
	s.Equal(types.PlanTierFree, s.planTier())

	s.GetProvider().Fail(testutil.OpGetSubscription, nil)
	result, err = s.handler.HandleWebhookEvent(s.GetContext(), event)
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeApplied, result.Outcome)
	s.Equal(types.PlanTierYearly, s.planTier())
}

func (s *HandlerSuite) TestUnhandledEventType() {
	result, err := s.handler.HandleWebhookEvent(s.GetContext(), s.event("evt_1", "customer.created", `{"id": "cus_1"}`))
	s.NoError(err)
	s.Equal(types.ReconciliationOutcomeIgnored, result.Outcome)
	s.Equal(types.BillingEventKindUnknown, result.Kind)
}

func (s *HandlerSuite) TestMalformedPayload() {
	tests := []struct {
		name  string
		event *stripeapi.Event
	}{
		{"no data", &stripeapi.Event{ID: "evt_1", Type: stripeapi.EventTypeCustomerSubscriptionUpdated}},
		{"subscription is not an object", s.event("evt_2", stripeapi.EventTypeCustomerSubscriptionUpdated, `[1, 2]`)},
		{"invoice lines are not a list", s.event("evt_3", stripeapi.EventTypeInvoicePaymentSucceeded, `{"id": "in_1", "lines": 5}`)},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			result, err := s.handler.HandleWebhookEvent(s.GetContext(), tt.event)
			s.Error(err)
			s.Nil(result)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Equal(types.PlanTierFree, s.planTier())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		eventType stripeapi.EventType
		want      types.BillingEventKind
	}{
		{stripeapi.EventTypeCheckoutSessionCompleted, types.BillingEventKindCheckoutCompleted},
		{stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded, types.BillingEventKindCheckoutCompleted},
		{stripeapi.EventTypeCustomerSubscriptionCreated, types.BillingEventKindSubscriptionUpdated},
		{stripeapi.EventTypeCustomerSubscriptionUpdated, types.BillingEventKindSubscriptionUpdated},
		{stripeapi.EventTypeCustomerSubscriptionDeleted, types.BillingEventKindSubscriptionDeleted},
		{stripeapi.EventTypeInvoicePaymentSucceeded, types.BillingEventKindPaymentSucceeded},
		{stripeapi.EventTypeInvoicePaid, types.BillingEventKindPaymentSucceeded},
		{"invoice.created", types.BillingEventKindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.eventType))
		})
	}
}

func TestDecodeInvoice(t *testing.T) {
	tests := []struct {
		name             string
		raw              string
		wantSubscription string
		wantPrice        string
		wantUser         string
		wantCustomer     string
	}{
		{
			name: "parent subscription details",
			raw: `{"id": "in_1", "customer": "cus_1",
				"parent": {"subscription_details": {"subscription": "sub_1", "metadata": {"user_id": "user_1"}}},
				"lines": {"data": [{"pricing": {"price_details": {"price": "price_yearly"}}}]}}`,
			wantSubscription: "sub_1",
			wantPrice:        "price_yearly",
			wantUser:         "user_1",
			wantCustomer:     "cus_1",
		},
		{
			name: "legacy top level fields",
			raw: `{"id": "in_2", "customer": {"id": "cus_2", "object": "customer"},
				"subscription": "sub_2",
				"subscription_details": {"metadata": {"user_id": "user_2"}},
				"lines": {"data": [{"price": {"id": "price_monthly"}}]}}`,
			wantSubscription: "sub_2",
			wantPrice:        "price_monthly",
			wantUser:         "user_2",
			wantCustomer:     "cus_2",
		},
		{
			name: "plan change credits the old price first",
			raw: `{"id": "in_4", "customer": "cus_4", "subscription": "sub_4",
				"lines": {"data": [
					{"amount": -4000, "proration": true, "price": {"id": "price_yearly"}},
					{"amount": 900, "price": {"id": "price_monthly"}}
				]}}`,
			wantSubscription: "sub_4",
			wantPrice:        "price_monthly",
			wantCustomer:     "cus_4",
		},
		{
			name: "proration only invoice charges the new price",
			raw: `{"id": "in_5", "customer": "cus_5",
				"parent": {"subscription_details": {"subscription": "sub_5"}},
				"lines": {"data": [
					{"amount": -900, "parent": {"subscription_item_details": {"proration": true}},
						"pricing": {"price_details": {"price": "price_monthly"}}},
					{"amount": 3500, "parent": {"subscription_item_details": {"proration": true}},
						"pricing": {"price_details": {"price": "price_yearly"}}}
				]}}`,
			wantSubscription: "sub_5",
			wantPrice:        "price_yearly",
			wantCustomer:     "cus_5",
		},
		{
			name:         "one-off invoice",
			raw:          `{"id": "in_3", "customer": "cus_3", "subscription": null, "lines": {"data": []}}`,
			wantCustomer: "cus_3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := decodeInvoice(&stripeapi.Event{ID: "evt_1", Data: &stripeapi.EventData{Raw: json.RawMessage(tt.raw)}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubscription, inv.subscriptionID())
			assert.Equal(t, tt.wantPrice, inv.priceID())
			assert.Equal(t, tt.wantUser, inv.userID())
			assert.Equal(t, tt.wantCustomer, inv.Customer.ID)
		})
	}
}
