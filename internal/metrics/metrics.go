// Package metrics exposes prometheus instruments for translation requests
// and history store operations. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "translateme"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

// Metrics holds the registered collectors.
type Metrics struct {
	translations *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	historyOps   *prometheus.CounterVec
	records      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translations_total",
				Help:      "Total number of translate calls by service and outcome.",
			},
			[]string{"service", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "translation_duration_seconds",
				Help:      "Latency of translate calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		historyOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_operations_total",
				Help:      "Total number of history store operations by kind and outcome.",
			},
			[]string{"op", "outcome"},
		),
		records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "history_records",
				Help:      "Number of records in the last delivered history snapshot.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.translations, m.latency, m.historyOps, m.records} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTranslation records one translate call.
func (m *Metrics) ObserveTranslation(service, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(service, outcome).Inc()
	m.latency.WithLabelValues(service).Observe(d.Seconds())
}

// ObserveHistory records one store operation (insert, delete_all, snapshot).
func (m *Metrics) ObserveHistory(op, outcome string) {
	if m == nil {
		return
	}
	m.historyOps.WithLabelValues(op, outcome).Inc()
}

// SetRecords records the size of the latest snapshot.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}
