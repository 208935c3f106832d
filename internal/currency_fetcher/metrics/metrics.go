package metrics

import (
	"github.com/langowen/ratesync/internal/entities"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ratesync"

// SyncMetrics collects synchronization metrics.
type SyncMetrics struct {
	// Runs
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// Providers
	FetchDuration      *prometheus.HistogramVec
	FetchFailuresTotal *prometheus.CounterVec

	// Rates
	RatesTotal      *prometheus.CounterVec
	RateErrorsTotal *prometheus.CounterVec
}

// NewSyncMetrics registers the collectors with reg, or with the default
// registry when reg is nil.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &SyncMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Synchronization runs by outcome",
			},
			[]string{"outcome"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Synchronization run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms, 200ms, 400ms...
			},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last synchronization finished",
			},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_fetch_duration_seconds",
				Help:      "Provider fetch duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"provider"},
		),

		FetchFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_failures_total",
				Help:      "Failed provider fetches",
			},
			[]string{"provider"},
		),

		RatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rates_total",
				Help:      "Reconciled rate records by outcome",
			},
			[]string{"provider", "outcome"},
		),

		RateErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_errors_total",
				Help:      "Rate records that failed to reconcile",
			},
			[]string{"provider"},
		),
	}
}

func (m *SyncMetrics) ObserveFetch(provider string, seconds float64, err error) {
	m.FetchDuration.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		m.FetchFailuresTotal.WithLabelValues(provider).Inc()
	}
}

func (m *SyncMetrics) ObserveReconcile(provider string, outcome entities.ReconcileOutcome, err error) {
	if err != nil {
		m.RateErrorsTotal.WithLabelValues(provider).Inc()
		return
	}
	m.RatesTotal.WithLabelValues(provider, outcome.String()).Inc()
}

func (m *SyncMetrics) ObserveRun(result entities.SyncResult) {
	m.RunsTotal.WithLabelValues(string(result.Outcome)).Inc()
	m.RunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	m.LastRunTimestamp.Set(float64(result.FinishedAt.Unix()))
}
