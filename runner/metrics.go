package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors for pipeline runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	runsStarted   *prometheus.CounterVec
	runsSucceeded *prometheus.CounterVec
	runsFailed    *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	errorLogs     *prometheus.CounterVec
}

// NewMetrics creates and registers the run collectors. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meltano_pipelines",
			Name:      "runs_started_total",
			Help:      "Pipeline runs started.",
		}, []string{"pipeline"}),
		runsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meltano_pipelines",
			Name:      "runs_succeeded_total",
			Help:      "Pipeline runs that exited zero.",
		}, []string{"pipeline"}),
		runsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meltano_pipelines",
			Name:      "runs_failed_total",
			Help:      "Pipeline runs that exited non-zero.",
		}, []string{"pipeline"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meltano_pipelines",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock pipeline run duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"pipeline"}),
		errorLogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meltano_pipelines",
			Name:      "error_logs_total",
			Help:      "Error log lines relayed from Meltano output.",
		}, []string{"pipeline"}),
	}

	reg.MustRegister(m.runsStarted, m.runsSucceeded, m.runsFailed, m.runDuration, m.errorLogs)
	return m
}

func (m *Metrics) runStarted(pipeline string) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) runFinished(pipeline string, seconds float64, failed bool, errorLogs int) {
	if m == nil {
		return
	}
	if failed {
		m.runsFailed.WithLabelValues(pipeline).Inc()
	} else {
		m.runsSucceeded.WithLabelValues(pipeline).Inc()
	}
	m.runDuration.WithLabelValues(pipeline).Observe(seconds)
	m.errorLogs.WithLabelValues(pipeline).Add(float64(errorLogs))
}
