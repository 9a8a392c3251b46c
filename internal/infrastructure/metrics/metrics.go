// Package metrics exposes Prometheus instruments for subset searches, link
// decisions and batch jobs. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "invoice_match_"

// Metrics holds the registered collectors.
type Metrics struct {
	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	candidates     prometheus.Histogram
	decisions      *prometheus.CounterVec
	jobs           *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "searches_total",
				Help: "Total subset searches by outcome",
			},
			[]string{"outcome"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "search_duration_seconds",
				Help:    "Subset search latency in seconds",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "candidates",
				Help:    "Number of candidate lines per subset search",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 50, 100},
			},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "link_decisions_total",
				Help: "Total link decisions by strategy",
			},
			[]string{"strategy"},
		),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "jobs_total",
				Help: "Total batch jobs by final status",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(m.searches, m.searchDuration, m.candidates, m.decisions, m.jobs)
	return m
}

// ObserveSearch records one subset search.
func (m *Metrics) ObserveSearch(outcome string, candidates int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.candidates.Observe(float64(candidates))
}

// ObserveDecision records one link decision.
func (m *Metrics) ObserveDecision(strategy string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(strategy).Inc()
}

// ObserveJob records a batch job reaching a final status.
func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}
