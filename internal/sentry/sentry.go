package sentry

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
)

// Lag thresholds between a provider creating an event and us processing it
const (
	webhookLagWarning  = time.Minute
	webhookLagCritical = 15 * time.Minute
)

// Service reports errors and traces to Sentry. Every method is a no-op when
// Sentry is disabled, so callers never check the configuration themselves.
type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

func NewSentryService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterHooks initializes the Sentry client on start and flushes it on stop
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.enabled() {
				svc.logger.Info("Sentry is disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    true,
				TracesSampleRate: svc.cfg.Sentry.SampleRate,
				TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
					switch ctx.Span.Name {
					case "GET /health", "GET /metrics":
						return 0.0
					}
					return svc.cfg.Sentry.SampleRate
				}),
			})
			if err != nil {
				svc.logger.Errorw("failed to initialize sentry", "error", err)
				return err
			}
			svc.logger.Infow("sentry initialized",
				"environment", svc.cfg.Sentry.Environment,
				"sample_rate", svc.cfg.Sentry.SampleRate)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc.enabled() {
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

func (s *Service) enabled() bool {
	return s.cfg.Sentry.Enabled
}

// CaptureWithTags captures an error with searchable tags such as the user
// and provider event it concerns. Empty tag values are skipped.
func (s *Service) CaptureWithTags(err error, tags map[string]string) {
	if !s.enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			if v != "" {
				scope.SetTag(k, v)
			}
		}
		sentry.CaptureException(err)
	})
}

// StartDBSpan starts a database span under the transaction carried by ctx
func (s *Service) StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.enabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Op = "db.postgres"
	span.Description = operation
	for k, v := range params {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// MonitorWebhookEvent traces the processing of one billing provider delivery and
// tags the enclosing transaction with how far behind the provider we are
func (s *Service) MonitorWebhookEvent(ctx context.Context, eventType string, createdAt time.Time, data map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.enabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, "webhook.process")
	span.Op = "webhook.process"
	span.Description = eventType
	for k, v := range data {
		span.SetData(k, v)
	}

	if !createdAt.IsZero() {
		lag := time.Since(createdAt)
		span.SetData("lag_ms", lag.Milliseconds())
		if tx := sentry.TransactionFromContext(ctx); tx != nil {
			tx.SetTag("webhook.lag.severity", lagSeverity(lag))
		}
	}
	return span, span.Context()
}

func lagSeverity(lag time.Duration) string {
	switch {
	case lag >= webhookLagCritical:
		return "critical"
	case lag >= webhookLagWarning:
		return "warning"
	default:
		return "normal"
	}
}

// StartTransaction starts a transaction for work that does not originate from an
// HTTP request, such as the drift sweep
func (s *Service) StartTransaction(ctx context.Context, name string, options ...sentry.SpanOption) (*sentry.Span, context.Context) {
	if !s.enabled() {
		return nil, ctx
	}

	if sentry.GetHubFromContext(ctx) == nil {
		ctx = sentry.SetHubOnContext(ctx, sentry.CurrentHub().Clone())
	}

	opts := append([]sentry.SpanOption{
		sentry.WithOpName(name),
		sentry.WithTransactionSource(sentry.SourceCustom),
	}, options...)
	tx := sentry.StartTransaction(ctx, name, opts...)
	return tx, tx.Context()
}
