package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flexprice/plansync/internal/api/cron"
	"github.com/flexprice/plansync/internal/api/dto"
	v1 "github.com/flexprice/plansync/internal/api/v1"
	"github.com/flexprice/plansync/internal/auth"
	"github.com/flexprice/plansync/internal/cache"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/integration/stripe"
	"github.com/flexprice/plansync/internal/integration/stripe/webhook"
	"github.com/flexprice/plansync/internal/service"
	"github.com/flexprice/plansync/internal/testutil"
	"github.com/flexprice/plansync/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) PingContext(context.Context) error {
	return p.err
}

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
	pinger *fakePinger
	token  string
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
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
	reconciler := service.NewReconcilerService(params)
	quota := service.NewQuotaService(params)
	billing := service.NewBillingService(params, reconciler)

	deliveries := cache.NewDeliveryLogWithCache(cache.NewInMemoryCache(s.GetConfig(), s.GetLogger()), time.Minute)
	client := stripe.NewClientWithStripe(nil, s.GetConfig(), s.GetLogger(), s.GetMetrics())
	validator := auth.NewTokenValidator(s.GetConfig())

	s.pinger = &fakePinger{}
	handlers := Handlers{
		Health:      v1.NewHealthHandler(s.pinger, s.GetLogger()),
		Webhook:     v1.NewWebhookHandler(client, webhook.NewHandler(reconciler, deliveries, s.GetSentry(), s.GetMetrics(), s.GetLogger()), s.GetLogger()),
		Billing:     v1.NewBillingHandler(billing, quota, reconciler, s.GetLogger()),
		Feature:     v1.NewFeatureHandler(s.GetLogger()),
		CronBilling: cron.NewBillingHandler(reconciler, s.GetLogger()),
	}
	s.router = NewRouter(handlers, s.GetConfig(), s.GetLogger(), s.GetMetrics(), validator, reconciler, quota)

	var err error
	s.token, err = validator.GenerateToken(testutil.TestUserID, testutil.TestUserEmail, time.Hour)
	s.Require().NoError(err)
}

func (s *RouterSuite) do(method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) authed(method, path string, body []byte) *httptest.ResponseRecorder {
	return s.do(method, path, body, http.Header{
		types.HeaderAuthorization: []string{"Bearer " + s.token},
	})
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *RouterSuite) signed(payload []byte) http.Header {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    s.GetConfig().Stripe.WebhookSecret,
		Timestamp: time.Now(),
	})
	return http.Header{types.HeaderStripeSignature: []string{signed.Header}}
}

func (s *RouterSuite) subscriptionEvent(eventID, eventType, priceID string) []byte {
	start := s.GetNow().Unix()
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": %q,
		"created": %d,
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"status": "active",
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
		}}
	}`, eventID, eventType, start, start, testutil.TestUserID, priceID, start, s.GetNow().AddDate(0, 1, 0).Unix()))
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)

	s.pinger.err = errors.New("connection refused")
	w = s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *RouterSuite) TestMetrics() {
	w := s.do(http.MethodGet, "/metrics", nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestRequestID() {
	w := s.do(http.MethodGet, "/health", nil, http.Header{types.HeaderRequestID: []string{"req_1"}})
	s.Equal("req_1", w.Header().Get(types.HeaderRequestID))

	w = s.do(http.MethodGet, "/health", nil, nil)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestUnauthenticated() {
	tests := []struct {
		name   string
		header http.Header
	}{
		{"no header", nil},
		{"not bearer", http.Header{types.HeaderAuthorization: []string{"Basic abc"}}},
		{"bad token", http.Header{types.HeaderAuthorization: []string{"Bearer abc"}}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodGet, "/v1/billing/status", nil, tt.header)
			s.Equal(http.StatusUnauthorized, w.Code)
		})
	}
	s.Equal(0, s.GetStores().UserRepo.Count())
}

func (s *RouterSuite) TestFirstRequestBootstrapsUser() {
	w := s.authed(http.MethodGet, "/v1/billing/status", nil)
	s.Equal(http.StatusOK, w.Code)

	var status dto.BillingStatusResponse
	s.decode(w, &status)
	s.Equal(types.PlanTierFree, status.PlanTier)
	s.Equal(int64(1), status.QuotaRemainingByFeature[string(types.FeatureStatement)])
	s.Equal(1, s.GetStores().UserRepo.Count())

	// later requests reuse the same user
	w = s.authed(http.MethodGet, "/v1/billing/status", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(1, s.GetStores().UserRepo.Count())
}

func (s *RouterSuite) TestFeatureConsume() {
	w := s.authed(http.MethodPost, "/v1/features/statement/consume", nil)
	s.Equal(http.StatusOK, w.Code)
	var decision dto.QuotaDecisionResponse
	s.decode(w, &decision)
	s.True(decision.Allowed)

	w = s.authed(http.MethodPost, "/v1/features/statement/consume", nil)
	s.Equal(http.StatusPaymentRequired, w.Code)
	s.decode(w, &decision)
	s.False(decision.Allowed)
	s.True(decision.RequiresUpgrade)
}

func (s *RouterSuite) TestCheckout() {
	w := s.authed(http.MethodPost, "/v1/billing/checkout",
		[]byte(fmt.Sprintf(`{"price_id": %q}`, testutil.TestPriceMonthly)))
	s.Equal(http.StatusCreated, w.Code)

	var resp dto.CheckoutResponse
	s.decode(w, &resp)
	s.NotEmpty(resp.SessionID)
	s.NotEmpty(resp.ClientSecret)
}

func (s *RouterSuite) TestCheckoutRejected() {
	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{"price_id":`},
		{"free price", fmt.Sprintf(`{"price_id": %q}`, types.FreePriceID)},
		{"unknown price", `{"price_id": "price_unknown"}`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.authed(http.MethodPost, "/v1/billing/checkout", []byte(tt.body))
			s.Equal(http.StatusBadRequest, w.Code)

			var resp ierr.ErrorResponse
			s.decode(w, &resp)
			s.False(resp.Success)
			s.NotEmpty(resp.Error.Display)
		})
	}
}

func (s *RouterSuite) TestCheckoutProviderFailure() {
	s.GetProvider().Fail(testutil.OpCreateCheckout, testutil.ProviderUnavailable())

	w := s.authed(http.MethodPost, "/v1/billing/checkout",
		[]byte(fmt.Sprintf(`{"price_id": %q}`, testutil.TestPriceMonthly)))
	s.Equal(http.StatusBadGateway, w.Code)
}

func (s *RouterSuite) TestCancelWithoutPaidPlan() {
	w := s.authed(http.MethodPost, "/v1/billing/cancel", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestWebhookUpgradesUser() {
	w := s.authed(http.MethodGet, "/v1/billing/status", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	payload := s.subscriptionEvent("evt_1", "customer.subscription.created", testutil.TestPriceMonthly)
	w = s.do(http.MethodPost, "/webhooks/billing", payload, s.signed(payload))
	s.Equal(http.StatusOK, w.Code)

	var ack dto.WebhookResponse
	s.decode(w, &ack)
	s.True(ack.Received)
	s.Equal("evt_1", ack.EventID)
	s.Equal(types.ReconciliationOutcomeApplied, ack.Outcome)

	// redelivery is acknowledged as a duplicate
	w = s.do(http.MethodPost, "/webhooks/billing", payload, s.signed(payload))
	s.Equal(http.StatusOK, w.Code)
	s.decode(w, &ack)
	s.Equal(types.ReconciliationOutcomeDuplicate, ack.Outcome)

	w = s.authed(http.MethodGet, "/v1/billing/status", nil)
	var status dto.BillingStatusResponse
	s.decode(w, &status)
	s.Equal(types.PlanTierMonthly, status.PlanTier)
	s.Equal(types.UnlimitedQuota, status.QuotaRemainingByFeature[string(types.FeatureStatement)])

	// paid users pass the gate every time
	for range 3 {
		w = s.authed(http.MethodPost, "/v1/features/statement/consume", nil)
		s.Equal(http.StatusOK, w.Code)
	}
}

func (s *RouterSuite) TestWebhookRejected() {
	payload := s.subscriptionEvent("evt_1", "customer.subscription.created", testutil.TestPriceMonthly)

	tests := []struct {
		name   string
		body   []byte
		header http.Header
	}{
		{"missing signature", payload, nil},
		{"wrong signature", payload, http.Header{types.HeaderStripeSignature: []string{"t=1,v1=deadbeef"}}},
		{"empty body", nil, s.signed(payload)},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPost, "/webhooks/billing", tt.body, tt.header)
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func (s *RouterSuite) TestWebhookForUnknownEventType() {
	payload := []byte(`{"id": "evt_9", "object": "event", "type": "customer.created", "created": 1767225600,
		"data": {"object": {"id": "cus_1", "object": "customer"}}}`)

	w := s.do(http.MethodPost, "/webhooks/billing", payload, s.signed(payload))
	s.Equal(http.StatusOK, w.Code)

	var ack dto.WebhookResponse
	s.decode(w, &ack)
	s.Equal(types.ReconciliationOutcomeIgnored, ack.Outcome)
}

func (s *RouterSuite) TestReconcile() {
	w := s.authed(http.MethodPost, "/v1/billing/reconcile", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp dto.ReconcileResponse
	s.decode(w, &resp)
	s.Equal(testutil.TestUserID, resp.UserID)
	s.Equal(types.PlanTierFree, resp.PlanTier)
}

func (s *RouterSuite) TestCronSweep() {
	w := s.authed(http.MethodPost, "/v1/cron/billing/reconcile", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp dto.SweepResponse
	s.decode(w, &resp)
	s.NotEmpty(resp.SweepID)
	s.Equal(int64(0), resp.Failed)
}
