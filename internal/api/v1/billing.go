package v1

import (
	"net/http"

	"github.com/flexprice/plansync/internal/api/dto"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/service"
	"github.com/flexprice/plansync/internal/types"
	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	billing    interfaces.BillingService
	quota      interfaces.QuotaService
	reconciler interfaces.ReconcilerService
	log        *logger.Logger
}

func NewBillingHandler(
	billing interfaces.BillingService,
	quota interfaces.QuotaService,
	reconciler interfaces.ReconcilerService,
	log *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		billing:    billing,
		quota:      quota,
		reconciler: reconciler,
		log:        log,
	}
}

// @Summary Create a checkout session
// @Description Starts a subscription purchase for the authenticated user. The plan
// @Description only changes once the provider confirms payment.
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCheckoutRequest true "Checkout"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /billing/checkout [post]
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	userID := types.GetUserID(c.Request.Context())
	resp, err := h.billing.CreateCheckout(c.Request.Context(), userID, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Cancel the paid subscription
// @Description Cancels the caller's paid subscription immediately and moves them to the free plan
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.CancelSubscriptionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /billing/cancel [post]
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	resp, err := h.billing.CancelSubscription(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get billing status
// @Description Returns the caller's plan tier and remaining free quota per feature (-1 is unlimited)
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.BillingStatusResponse
// @Router /billing/status [get]
func (h *BillingHandler) GetStatus(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	resp, err := h.quota.GetStatus(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Reconcile with the billing provider
// @Description Re-reads the caller's subscriptions from the provider and repairs local state
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ReconcileResponse
// @Router /billing/reconcile [post]
func (h *BillingHandler) Reconcile(c *gin.Context) {
	userID := types.GetUserID(c.Request.Context())
	result, err := h.reconciler.ReconcileOnDemand(c.Request.Context(), userID, service.TriggerOnDemand)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ReconcileResponse{
		UserID:   userID,
		PlanTier: result.PlanTier,
		Outcome:  result.Outcome,
	})
}
