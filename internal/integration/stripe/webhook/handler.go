package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flexprice/plansync/internal/cache"
	"github.com/flexprice/plansync/internal/domain/billing"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/integration/stripe"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/metrics"
	"github.com/flexprice/plansync/internal/sentry"
	"github.com/flexprice/plansync/internal/types"
	stripeapi "github.com/stripe/stripe-go/v82"
)

const providerType = "stripe"

// Handler routes verified Stripe events to the reconciler
type Handler struct {
	reconciler interfaces.ReconcilerService
	deliveries *cache.DeliveryLog
	sentry     *sentry.Service
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewHandler creates a new Stripe webhook handler
func NewHandler(
	reconciler interfaces.ReconcilerService,
	deliveries *cache.DeliveryLog,
	sentry *sentry.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		reconciler: reconciler,
		deliveries: deliveries,
		sentry:     sentry,
		metrics:    metrics,
		logger:     logger,
	}
}

// KindOf maps a Stripe event type to the normalized billing event kind
func KindOf(eventType stripeapi.EventType) types.BillingEventKind {
	switch eventType {
	case stripeapi.EventTypeCheckoutSessionCompleted,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return types.BillingEventKindCheckoutCompleted
	case stripeapi.EventTypeCustomerSubscriptionCreated,
		stripeapi.EventTypeCustomerSubscriptionUpdated:
		return types.BillingEventKindSubscriptionUpdated
	case stripeapi.EventTypeCustomerSubscriptionDeleted:
		return types.BillingEventKindSubscriptionDeleted
	case stripeapi.EventTypeInvoicePaymentSucceeded,
		stripeapi.EventTypeInvoicePaid:
		return types.BillingEventKindPaymentSucceeded
	default:
		return types.BillingEventKindUnknown
	}
}

// HandleWebhookEvent processes a verified Stripe event. Business outcomes are
// reported in the result; an error is returned only for malformed payloads and
// failures a redelivery may fix.
func (h *Handler) HandleWebhookEvent(ctx context.Context, event *stripeapi.Event) (*billing.Result, error) {
	meta := billing.EventMeta{
		ID:           event.ID,
		Kind:         KindOf(event.Type),
		ProviderType: providerType,
	}
	if event.Created > 0 {
		meta.CreatedAt = time.Unix(event.Created, 0).UTC()
	}

	span, ctx := h.sentry.MonitorWebhookEvent(ctx, string(event.Type), meta.CreatedAt, map[string]interface{}{
		"event_id": event.ID,
		"kind":     meta.Kind,
	})
	if span != nil {
		defer span.Finish()
	}

	h.logger.Infow("processing Stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
		"kind", meta.Kind)

	if h.deliveries.Seen(ctx, event.ID) {
		result := billing.NewResult(meta)
		result.Outcome = types.ReconciliationOutcomeDuplicate
		h.logger.Infow("duplicate Stripe webhook delivery acknowledged", "event_id", event.ID)
		h.metrics.RecordWebhookEvent(meta.Kind, result.Outcome)
		return result, nil
	}

	result, err := h.route(ctx, event, meta)
	if err != nil {
		h.logger.Errorw("failed to process Stripe webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return nil, err
	}

	// unresolved events stay eligible for a manual redelivery
	if result.Outcome != types.ReconciliationOutcomeUnresolved {
		h.deliveries.Remember(ctx, event.ID)
	}
	h.metrics.RecordWebhookEvent(meta.Kind, result.Outcome)
	return result, nil
}

func (h *Handler) route(ctx context.Context, event *stripeapi.Event, meta billing.EventMeta) (*billing.Result, error) {
	switch meta.Kind {
	case types.BillingEventKindCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event, meta)
	case types.BillingEventKindSubscriptionUpdated:
		return h.handleSubscriptionChanged(ctx, event, meta)
	case types.BillingEventKindSubscriptionDeleted:
		return h.handleSubscriptionDeleted(ctx, event, meta)
	case types.BillingEventKindPaymentSucceeded:
		return h.handlePaymentSucceeded(ctx, event, meta)
	default:
		h.logger.Infow("unhandled Stripe webhook event type", "type", event.Type)
		result := billing.NewResult(meta)
		result.Outcome = types.ReconciliationOutcomeIgnored
		return result, nil
	}
}

// handleCheckoutCompleted handles checkout.session.completed webhook
func (h *Handler) handleCheckoutCompleted(ctx context.Context, event *stripeapi.Event, meta billing.EventMeta) (*billing.Result, error) {
	var session stripeapi.CheckoutSession
	if err := unmarshalObject(event, &session); err != nil {
		return nil, err
	}

	meta.SubjectUserID = session.ClientReferenceID
	if meta.SubjectUserID == "" {
		meta.SubjectUserID = session.Metadata[stripe.MetadataUserID]
	}
	if session.Customer != nil {
		meta.ProviderCustomerID = session.Customer.ID
	}

	completed := &billing.CheckoutCompleted{EventMeta: meta}
	if session.Subscription != nil {
		completed.ProviderSubscriptionID = session.Subscription.ID
	}

	h.logger.Infow("routing checkout completion",
		"event_id", meta.ID,
		"session_id", session.ID,
		"user_id", meta.SubjectUserID,
		"provider_subscription_id", completed.ProviderSubscriptionID)
	return h.reconciler.HandleCheckoutCompleted(ctx, completed)
}

// handleSubscriptionChanged handles customer.subscription.created and updated webhooks
func (h *Handler) handleSubscriptionChanged(ctx context.Context, event *stripeapi.Event, meta billing.EventMeta) (*billing.Result, error) {
	var sub stripeapi.Subscription
	if err := unmarshalObject(event, &sub); err != nil {
		return nil, err
	}

	snap := stripe.SnapshotFromStripe(&sub)
	meta.SubjectUserID = snap.UserID
	meta.ProviderCustomerID = snap.ProviderCustomerID

	h.logger.Infow("routing subscription change",
		"event_id", meta.ID,
		"provider_subscription_id", snap.ProviderSubscriptionID,
		"status", snap.Status,
		"price_id", snap.PriceID)
	return h.reconciler.HandleSubscriptionChanged(ctx, &billing.SubscriptionChanged{
		EventMeta:    meta,
		Subscription: *snap,
	})
}

// handleSubscriptionDeleted handles customer.subscription.deleted webhook
func (h *Handler) handleSubscriptionDeleted(ctx context.Context, event *stripeapi.Event, meta billing.EventMeta) (*billing.Result, error) {
	var sub stripeapi.Subscription
	if err := unmarshalObject(event, &sub); err != nil {
		return nil, err
	}

	snap := stripe.SnapshotFromStripe(&sub)
	meta.SubjectUserID = snap.UserID
	meta.ProviderCustomerID = snap.ProviderCustomerID

	h.logger.Infow("routing subscription deletion",
		"event_id", meta.ID,
		"provider_subscription_id", snap.ProviderSubscriptionID)
	return h.reconciler.HandleSubscriptionDeleted(ctx, &billing.SubscriptionDeleted{
		EventMeta:              meta,
		ProviderSubscriptionID: snap.ProviderSubscriptionID,
	})
}

// handlePaymentSucceeded handles invoice.payment_succeeded and invoice.paid webhooks
func (h *Handler) handlePaymentSucceeded(ctx context.Context, event *stripeapi.Event, meta billing.EventMeta) (*billing.Result, error) {
	inv, err := decodeInvoice(event)
	if err != nil {
		return nil, err
	}

	meta.SubjectUserID = inv.userID()
	meta.ProviderCustomerID = inv.Customer.ID

	payment := &billing.PaymentSucceeded{
		EventMeta:              meta,
		ProviderSubscriptionID: inv.subscriptionID(),
		PriceID:                inv.priceID(),
	}

	h.logger.Infow("routing invoice payment",
		"event_id", meta.ID,
		"invoice_id", inv.ID,
		"provider_subscription_id", payment.ProviderSubscriptionID,
		"price_id", payment.PriceID)
	return h.reconciler.HandlePaymentSucceeded(ctx, payment)
}

func unmarshalObject(event *stripeapi.Event, v any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ierr.NewError("webhook event has no data object").
			WithHint("Invalid webhook payload").
			WithReportableDetails(map[string]any{"event_id": event.ID}).
			Mark(ierr.ErrValidation)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid webhook payload").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
