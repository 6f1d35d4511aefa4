// Package metrics holds the Prometheus collectors of the precompute pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "govlens"

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Metrics owns a dedicated registry so tests and multiple workers in one
// process never collide on the default one. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runs           *prometheus.CounterVec
	chainDuration  *prometheus.HistogramVec
	votesProcessed *prometheus.CounterVec
}

// New registers the precompute collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precompute",
			Name:      "runs_total",
			Help:      "Precompute runs by outcome.",
		}, []string{"status"}),
		chainDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "precompute",
			Name:      "chain_duration_seconds",
			Help:      "Time spent loading and aggregating one chain.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"chain"}),
		votesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precompute",
			Name:      "votes_processed_total",
			Help:      "Vote records read per chain.",
		}, []string{"chain"}),
	}
	reg.MustRegister(
		m.runs,
		m.chainDuration,
		m.votesProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveChain(chain string, took time.Duration, votes int) {
	if m == nil {
		return
	}
	m.chainDuration.WithLabelValues(chain).Observe(took.Seconds())
	m.votesProcessed.WithLabelValues(chain).Add(float64(votes))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
