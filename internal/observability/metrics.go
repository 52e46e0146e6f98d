package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the repair loop and its
// collaborators.
type Metrics struct {
	registry       *prometheus.Registry
	RepairRuns     *prometheus.CounterVec
	RepairDuration *prometheus.HistogramVec
	RepairAttempts *prometheus.HistogramVec
	VerifierRuns   *prometheus.CounterVec
	VerifierDur    *prometheus.HistogramVec
	ModelFailures  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with repair collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esbmcai_repair_runs_total",
		Help: "Repair runs by terminal outcome",
	}, []string{"outcome"})

	runDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esbmcai_repair_duration_seconds",
		Help:    "Repair run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"outcome"})

	attempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esbmcai_repair_attempts",
		Help:    "Model attempts consumed per repair run",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	}, []string{"outcome"})

	verifierRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esbmcai_verifier_runs_total",
		Help: "Verifier invocations by status (pass/fail/timeout/error)",
	}, []string{"status"})

	verifierDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esbmcai_verifier_duration_seconds",
		Help:    "Verifier invocation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esbmcai_model_failures_total",
		Help: "Model call failures by provider",
	}, []string{"provider"})

	reg.MustRegister(runs, runDur, attempts, verifierRuns, verifierDur, modelFailures)

	return &Metrics{
		registry:       reg,
		RepairRuns:     runs,
		RepairDuration: runDur,
		RepairAttempts: attempts,
		VerifierRuns:   verifierRuns,
		VerifierDur:    verifierDur,
		ModelFailures:  modelFailures,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRepairRun records a finished repair run.
func (m *Metrics) RecordRepairRun(outcome string, duration time.Duration, attempts int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.RepairRuns.WithLabelValues(outcome).Inc()
	m.RepairDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.RepairAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}

// RecordVerifierRun records one verifier invocation.
func (m *Metrics) RecordVerifierRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.VerifierRuns.WithLabelValues(status).Inc()
	m.VerifierDur.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordModelFailure records a failed model call.
func (m *Metrics) RecordModelFailure(provider string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.ModelFailures.WithLabelValues(provider).Inc()
}
