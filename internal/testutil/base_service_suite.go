package testutil

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/domain/plan"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/metrics"
	"github.com/flexprice/plansync/internal/sentry"
	"github.com/flexprice/plansync/internal/types"
	"github.com/flexprice/plansync/internal/validator"
	"github.com/stretchr/testify/suite"
)

const (
	TestPriceMonthly = "price_monthly"
	TestPriceYearly  = "price_yearly"
	TestUserID       = "user_test"
	TestUserEmail    = "user@example.com"
)

// Stores holds all the repository implementations for testing
type Stores struct {
	UserRepo         *InMemoryUserStore
	SubscriptionRepo *InMemorySubscriptionStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	db       *MockPostgresClient
	provider *FakeBillingProvider
	resolver *plan.Resolver
	metrics  *metrics.Metrics
	sentry   *sentry.Service
	logger   *logger.Logger
	config   *config.Configuration
	now      time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = NewTestConfig()
	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.sentry = sentry.NewSentryService(s.config, s.logger)
	s.resolver = plan.NewResolver(s.config)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext(TestUserID)
	s.stores = Stores{
		UserRepo:         NewInMemoryUserStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
	}
	s.db = NewMockPostgresClient(s.logger, s.stores.UserRepo, s.stores.SubscriptionRepo)
	s.provider = NewFakeBillingProvider()
	s.metrics = metrics.NewMetrics()
	s.now = time.Now().UTC().Truncate(time.Second)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.UserRepo.Clear()
	s.stores.SubscriptionRepo.Clear()
	s.provider.Reset()
}

// NewTestConfig returns a configuration with two paid prices, one free statement
// generation and provider retries fast enough for unit tests
func NewTestConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Auth.Secret = "test-secret"
	cfg.Stripe = config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://app.example.com/billing/return",
		UIMode:        config.StripeUIModeEmbedded,
	}
	cfg.Billing.Prices = []config.PriceConfig{
		{ID: TestPriceMonthly, Tier: types.PlanTierMonthly},
		{ID: TestPriceYearly, Tier: types.PlanTierYearly},
	}
	cfg.Billing.ProviderTimeout = time.Second
	cfg.Billing.MaxRetries = 2
	cfg.Billing.InitialBackoff = time.Millisecond
	cfg.Billing.MaxBackoff = 5 * time.Millisecond
	cfg.Billing.Sweep = config.SweepConfig{
		Concurrency:   2,
		RatePerSecond: 1000,
		BatchSize:     2,
	}
	return cfg
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test transaction manager
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetProvider returns the scripted billing provider
func (s *BaseServiceTestSuite) GetProvider() *FakeBillingProvider {
	return s.provider
}

// GetResolver returns the plan resolver built from the test prices
func (s *BaseServiceTestSuite) GetResolver() *plan.Resolver {
	return s.resolver
}

// GetMetrics returns the per-test metrics registry
func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetSentry returns a disabled sentry service
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
