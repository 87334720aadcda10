package v1

import (
	"net/http"

	"github.com/flexprice/plansync/internal/api/dto"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type FeatureHandler struct {
	log *logger.Logger
}

func NewFeatureHandler(log *logger.Logger) *FeatureHandler {
	return &FeatureHandler{log: log}
}

// @Summary Consume a feature use
// @Description Consumes one use of a quota-gated feature. Denials are answered with 402
// @Description by the quota gate before this handler runs.
// @Tags Features
// @Produce json
// @Security BearerAuth
// @Param feature path string true "Feature key"
// @Success 200 {object} dto.QuotaDecisionResponse
// @Failure 402 {object} dto.QuotaDecisionResponse
// @Router /features/{feature}/consume [post]
func (h *FeatureHandler) Consume(c *gin.Context) {
	decision, ok := middleware.QuotaDecision(c)
	if !ok {
		// the route is always mounted behind the quota gate
		h.log.Errorw("feature consumed without a quota decision", "feature", c.Param("feature"))
		c.JSON(http.StatusInternalServerError, dto.SuccessResponse{Message: "quota gate not configured"})
		return
	}

	c.JSON(http.StatusOK, decision)
}
