package metrics

import (
	"net/http"
	"time"

	"github.com/flexprice/plansync/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	registry *prometheus.Registry

	WebhookEventsTotal   *prometheus.CounterVec
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	QuotaDecisionsTotal  *prometheus.CounterVec
	ReconcileDuration    *prometheus.HistogramVec
	SweepUsersTotal      *prometheus.CounterVec
	PlanTransitionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a dedicated registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansync_webhook_events_total",
				Help: "Billing provider deliveries by normalized kind and reconciliation outcome",
			},
			[]string{"kind", "outcome"},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansync_provider_calls_total",
				Help: "Billing provider API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plansync_provider_call_duration_seconds",
				Help:    "Billing provider API call duration including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansync_quota_decisions_total",
				Help: "Quota gate decisions by feature",
			},
			[]string{"feature", "decision"},
		),
		ReconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plansync_reconcile_duration_seconds",
				Help:    "Time spent reconciling one user",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		SweepUsersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansync_sweep_users_total",
				Help: "Users visited by the drift sweep by result",
			},
			[]string{"result"},
		),
		PlanTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansync_plan_transitions_total",
				Help: "Plan tier changes applied to users",
			},
			[]string{"from", "to"},
		),
	}

	registry.MustRegister(
		m.WebhookEventsTotal,
		m.ProviderCallsTotal,
		m.ProviderCallDuration,
		m.QuotaDecisionsTotal,
		m.ReconcileDuration,
		m.SweepUsersTotal,
		m.PlanTransitionsTotal,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordWebhookEvent(kind types.BillingEventKind, outcome types.ReconciliationOutcome) {
	m.WebhookEventsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (m *Metrics) RecordProviderCall(operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ProviderCallsTotal.WithLabelValues(operation, result).Inc()
	m.ProviderCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordQuotaDecision(feature types.FeatureKey, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	m.QuotaDecisionsTotal.WithLabelValues(string(feature), decision).Inc()
}

func (m *Metrics) ObserveReconcile(trigger string, start time.Time) {
	m.ReconcileDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordSweepUser(result string) {
	m.SweepUsersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPlanTransition(from, to types.PlanTier) {
	if from == to {
		return
	}
	m.PlanTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}
