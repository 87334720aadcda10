package v1

import (
	"io"
	"net/http"

	"github.com/flexprice/plansync/internal/api/dto"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/integration/stripe"
	"github.com/flexprice/plansync/internal/integration/stripe/webhook"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/types"
	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes matches the largest event Stripe documents sending
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler handles billing provider deliveries
type WebhookHandler struct {
	client  *stripe.Client
	handler *webhook.Handler
	logger  *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	client *stripe.Client,
	handler *webhook.Handler,
	logger *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		client:  client,
		handler: handler,
		logger:  logger,
	}
}

// @Summary Handle billing webhook
// @Description Verifies the Stripe signature over the raw body and reconciles the event.
// @Description Business outcomes are acknowledged with 200; only bad signatures and
// @Description malformed payloads are rejected.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe webhook signature"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /webhooks/billing [post]
func (h *WebhookHandler) HandleBillingWebhook(c *gin.Context) {
	// Read the raw request body; the signature covers the exact bytes
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Errorw("failed to read request body", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(types.HeaderStripeSignature)

	h.logger.Debugw("received billing webhook",
		"payload_length", len(body),
		"request_id", types.GetRequestID(c.Request.Context()))

	event, err := h.client.ParseWebhookEvent(body, signature)
	if err != nil {
		c.Error(err)
		return
	}

	result, err := h.handler.HandleWebhookEvent(c.Request.Context(), event)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Received: true,
		EventID:  result.EventID,
		Outcome:  result.Outcome,
	})
}
