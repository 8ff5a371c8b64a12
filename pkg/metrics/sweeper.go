package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics records metadata for sweeper and other scheduled jobs.
type SweeperMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	promoted *prometheus.CounterVec
}

// NewSweeperMetrics registers the sweeper metrics on the provided registerer.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	if reg == nil {
		return &SweeperMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful scheduled job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed scheduled job executions.",
	}, []string{"job"})
	promoted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_promoted_total",
		Help: "Delayed settlements promoted to approved.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, promoted)
	return &SweeperMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		promoted: promoted,
	}
}

// ObserveDuration records the duration for the named job.
func (s *SweeperMetrics) ObserveDuration(job string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (s *SweeperMetrics) IncSuccess(job string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (s *SweeperMetrics) IncFailure(job string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddPromoted counts settlements promoted by the named job.
func (s *SweeperMetrics) AddPromoted(job string, count int) {
	if s == nil || s.promoted == nil || count <= 0 {
		return
	}
	s.promoted.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
