// Package metrics provides Prometheus instrumentation for the predictor.
//
// Metrics exposed:
//   - hirelens_predict_seconds: Histogram of full prediction call duration
//   - hirelens_dataset_rows: Gauge of the last processed dataset's row count
//   - hirelens_forecast_tier_total: Counter of forecasts by tier
//   - hirelens_errors_total: Counter of errors by component and reason
//
// All metrics are exposed at /metrics for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	PredictSeconds    prometheus.Histogram
	DatasetRows       prometheus.Gauge
	ForecastTierTotal *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PredictSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hirelens_predict_seconds",
			Help:    "Time spent serving one full prediction call",
			Buckets: prometheus.DefBuckets,
		}),

		DatasetRows: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hirelens_dataset_rows",
			Help: "Row count of the most recently processed dataset",
		}),

		ForecastTierTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hirelens_forecast_tier_total",
			Help: "Total per-role forecasts by estimation tier",
		}, []string{"tier"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hirelens_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordPredict records the duration of one prediction call.
func (m *Metrics) RecordPredict(seconds float64) {
	m.PredictSeconds.Observe(seconds)
}

// SetDatasetRows records the last dataset's size.
func (m *Metrics) SetDatasetRows(rows int) {
	m.DatasetRows.Set(float64(rows))
}

// RecordTier increments the forecast counter for an estimation tier.
func (m *Metrics) RecordTier(tier string) {
	m.ForecastTierTotal.WithLabelValues(tier).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
