package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records run outcomes and stage latencies. A nil *Metrics is a no-op.
type Metrics struct {
	runs            *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	runDuration     prometheus.Histogram
	inFlight        prometheus.Gauge
	rejected        prometheus.Counter
	cleanupFailures prometheus.Counter
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "captioner",
			Name:      "runs_total",
			Help:      "Subtitle runs by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "captioner",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "captioner",
			Name:      "run_duration_seconds",
			Help:      "End-to-end run time including cleanup.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "captioner",
			Name:      "runs_in_flight",
			Help:      "Runs currently executing.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "captioner",
			Name:      "runs_rejected_total",
			Help:      "Runs refused because the server was saturated.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "captioner",
			Name:      "artifact_cleanup_failures_total",
			Help:      "Temporary artifacts that could not be removed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.stageDuration, m.runDuration, m.inFlight, m.rejected, m.cleanupFailures)
	}
	return m
}

func (m *Metrics) observeStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) runFinished(stage string, err error, elapsed time.Duration, cleanupFailures int) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.runDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues("failed", stage).Inc()
	} else {
		m.runs.WithLabelValues("succeeded", "").Inc()
	}
	if cleanupFailures > 0 {
		m.cleanupFailures.Add(float64(cleanupFailures))
	}
}

func (m *Metrics) runRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}
