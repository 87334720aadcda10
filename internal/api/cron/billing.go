package cron

import (
	"net/http"

	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/gin-gonic/gin"
)

// BillingHandler handles billing related cron jobs
type BillingHandler struct {
	reconciler interfaces.ReconcilerService
	logger     *logger.Logger
}

// NewBillingHandler creates a new billing cron handler
func NewBillingHandler(
	reconciler interfaces.ReconcilerService,
	logger *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// ReconcileAll sweeps every user linked to a provider customer for drift
func (h *BillingHandler) ReconcileAll(c *gin.Context) {
	h.logger.Infow("starting billing drift sweep cron job")

	response, err := h.reconciler.ReconcileAll(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to run billing drift sweep",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed billing drift sweep cron job",
		"sweep_id", response.SweepID,
		"checked", response.Checked,
		"changed", response.Changed,
		"failed", response.Failed)
	c.JSON(http.StatusOK, response)
}
