package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/plansync/internal/api"
	"github.com/flexprice/plansync/internal/api/cron"
	v1 "github.com/flexprice/plansync/internal/api/v1"
	"github.com/flexprice/plansync/internal/auth"
	"github.com/flexprice/plansync/internal/cache"
	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/flexprice/plansync/internal/domain/plan"
	"github.com/flexprice/plansync/internal/integration/stripe"
	"github.com/flexprice/plansync/internal/integration/stripe/webhook"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/metrics"
	"github.com/flexprice/plansync/internal/postgres"
	"github.com/flexprice/plansync/internal/repository"
	"github.com/flexprice/plansync/internal/sentry"
	"github.com/flexprice/plansync/internal/service"
	"github.com/flexprice/plansync/internal/types"
	"github.com/flexprice/plansync/internal/validator"
	"github.com/gin-gonic/gin"
	goValidator "github.com/go-playground/validator/v10"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// Initialize Fx application
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,
			metrics.NewMetrics,

			// Cache
			cache.NewInMemoryCache,
			cache.NewDeliveryLog,

			// Postgres
			postgres.NewDB,
			providePostgresClient,

			// Repositories
			repository.NewUserRepository,
			repository.NewSubscriptionRepository,

			// Billing provider
			stripe.NewClient,
			provideBillingProvider,
			plan.NewResolver,

			// Auth
			auth.NewTokenValidator,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewReconcilerService,
			service.NewQuotaService,
			service.NewBillingService,
			webhook.NewHandler,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			initValidator,
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

// initValidator forces the request validator to be built before any handler runs
func initValidator(*goValidator.Validate) {}

func providePostgresClient(db *postgres.DB, sentry *sentry.Service, logger *logger.Logger) postgres.IClient {
	return postgres.NewSentryClient(db, sentry, logger)
}

func provideBillingProvider(client *stripe.Client) billing.Provider {
	return client
}

func provideHandlers(
	logger *logger.Logger,
	db *postgres.DB,
	stripeClient *stripe.Client,
	webhookHandler *webhook.Handler,
	reconciler interfaces.ReconcilerService,
	quota interfaces.QuotaService,
	billingService interfaces.BillingService,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(db, logger),
		Webhook:     v1.NewWebhookHandler(stripeClient, webhookHandler, logger),
		Billing:     v1.NewBillingHandler(billingService, quota, reconciler, logger),
		Feature:     v1.NewFeatureHandler(logger),
		CronBilling: cron.NewBillingHandler(reconciler, logger),
	}
}

func provideRouter(
	handlers api.Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	validator *auth.TokenValidator,
	reconciler interfaces.ReconcilerService,
	quota interfaces.QuotaService,
) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, metrics, validator, reconciler, quota)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db *postgres.DB,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		runMigrations(lc, db, log)
		startAPIServer(lc, r, cfg, db, log)
	case types.ModeAPI:
		if cfg.Postgres.AutoMigrate {
			runMigrations(lc, db, log)
		}
		startAPIServer(lc, r, cfg, db, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func runMigrations(lc fx.Lifecycle, db *postgres.DB, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Applying database migrations...")
			return postgres.Migrate(ctx, db, log)
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	db *postgres.DB,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			err := srv.Shutdown(ctx)
			db.Close()
			return err
		},
	})
}
