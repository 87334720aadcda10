package middleware

import (
	"net/http"

	"github.com/flexprice/plansync/internal/api/dto"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/types"
	"github.com/gin-gonic/gin"
)

const quotaDecisionKey = "quota_decision"

// RequireQuota consumes one use of feature before the wrapped handler runs.
// Callers over their free allowance get 402 with requires_upgrade set.
func RequireQuota(quota interfaces.QuotaService, feature types.FeatureKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate(c, quota, string(feature))
	}
}

// RequireQuotaFromParam is RequireQuota for routes that name the feature in a path parameter
func RequireQuotaFromParam(quota interfaces.QuotaService, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate(c, quota, c.Param(param))
	}
}

// QuotaDecision returns the decision recorded by the quota gate for this request
func QuotaDecision(c *gin.Context) (*dto.QuotaDecisionResponse, bool) {
	v, ok := c.Get(quotaDecisionKey)
	if !ok {
		return nil, false
	}
	decision, ok := v.(*dto.QuotaDecisionResponse)
	return decision, ok
}

func gate(c *gin.Context, quota interfaces.QuotaService, feature string) {
	userID := types.GetUserID(c.Request.Context())
	decision, err := quota.CheckAndConsume(c.Request.Context(), userID, feature)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	if !decision.Allowed {
		c.AbortWithStatusJSON(http.StatusPaymentRequired, decision)
		return
	}

	c.Set(quotaDecisionKey, decision)
	c.Next()
}
