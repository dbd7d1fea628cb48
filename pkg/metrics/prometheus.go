package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	warningsTotal  *prometheus.CounterVec
	lastExhaustion *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg (a private registry in tests).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_runs_total",
				Help: "Total number of pipeline runs",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		warningsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_warnings_total",
				Help: "Degenerate-range and insufficient-data warnings per stage",
			},
			[]string{"stage"},
		),
		lastExhaustion: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimelab_last_exhaustion",
				Help: "Latest normalized exhaustion score for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimelab_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRun(symbol string) {
	r.runsTotal.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordWarning(stage string) {
	r.warningsTotal.WithLabelValues(stage).Inc()
}

// RecordExhaustion records the latest score for a symbol.
func (r *Recorder) RecordExhaustion(symbol string, score float64) {
	r.lastExhaustion.WithLabelValues(symbol).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
