package service

import (
	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/domain/billing"
	"github.com/flexprice/plansync/internal/domain/plan"
	"github.com/flexprice/plansync/internal/domain/subscription"
	"github.com/flexprice/plansync/internal/domain/user"
	"github.com/flexprice/plansync/internal/idempotency"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/metrics"
	"github.com/flexprice/plansync/internal/postgres"
	"github.com/flexprice/plansync/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Metrics *metrics.Metrics
	Sentry  *sentry.Service

	// Repositories
	UserRepo user.Repository
	SubRepo  subscription.Repository

	// Billing
	Provider    billing.Provider
	Resolver    *plan.Resolver
	Idempotency *idempotency.Generator
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	metrics *metrics.Metrics,
	sentry *sentry.Service,
	userRepo user.Repository,
	subRepo subscription.Repository,
	provider billing.Provider,
	resolver *plan.Resolver,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      config,
		DB:          db,
		Metrics:     metrics,
		Sentry:      sentry,
		UserRepo:    userRepo,
		SubRepo:     subRepo,
		Provider:    provider,
		Resolver:    resolver,
		Idempotency: idempotency.NewGenerator(),
	}
}
