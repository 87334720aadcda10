package api

import (
	"github.com/flexprice/plansync/internal/api/cron"
	v1 "github.com/flexprice/plansync/internal/api/v1"
	"github.com/flexprice/plansync/internal/auth"
	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/metrics"
	"github.com/flexprice/plansync/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health      *v1.HealthHandler
	Webhook     *v1.WebhookHandler
	Billing     *v1.BillingHandler
	Feature     *v1.FeatureHandler
	CronBilling *cron.BillingHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	validator *auth.TokenValidator,
	reconciler interfaces.ReconcilerService,
	quota interfaces.QuotaService,
) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.RequestLogger(logger),
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Provider deliveries authenticate with their signature, not a bearer token
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/billing", handlers.Webhook.HandleBillingWebhook)
	}

	private := router.Group("/v1")
	private.Use(
		middleware.AuthenticateMiddleware(validator, reconciler, logger),
		middleware.SentryUserMiddleware,
	)

	billing := private.Group("/billing")
	{
		billing.POST("/checkout", handlers.Billing.CreateCheckout)
		billing.POST("/cancel", handlers.Billing.CancelSubscription)
		billing.GET("/status", handlers.Billing.GetStatus)
		billing.POST("/reconcile", handlers.Billing.Reconcile)
	}

	features := private.Group("/features")
	{
		features.POST("/:feature/consume", middleware.RequireQuotaFromParam(quota, "feature"), handlers.Feature.Consume)
	}

	cronGroup := private.Group("/cron")
	{
		cronGroup.POST("/billing/reconcile", handlers.CronBilling.ReconcileAll)
	}

	return router
}
