package rotation

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rotationStartedTotal   *prometheus.CounterVec
	rotationCompletedTotal *prometheus.CounterVec
	rotationDuration       *prometheus.HistogramVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics records rotation telemetry. Recording is a no-op until
// InitMetrics has been called, so library embedders pay nothing unless
// they opt in.
type Metrics struct{}

// NewMetrics creates a Metrics handle.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers the Prometheus collectors. Call once at startup
// when metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		rotationStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credops_rotation_started_total",
				Help: "Total number of credential rotations started",
			},
			[]string{"client"},
		)

		rotationCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credops_rotation_completed_total",
				Help: "Total number of credential rotations completed",
			},
			[]string{"client", "status"},
		)

		rotationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credops_rotation_duration_seconds",
				Help:    "Duration of credential rotations in seconds",
				Buckets: []float64{1, 10, 60, 300, 3600, 86400},
			},
			[]string{"client"},
		)

		metricsRegistered = true
	})
}

// RecordStarted counts a rotation start.
func (m *Metrics) RecordStarted(clientID string) {
	if !metricsRegistered || rotationStartedTotal == nil {
		return
	}
	rotationStartedTotal.WithLabelValues(clientID).Inc()
}

// RecordCompleted counts a rotation completion and observes its duration.
func (m *Metrics) RecordCompleted(clientID, status string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	if rotationCompletedTotal != nil {
		rotationCompletedTotal.WithLabelValues(clientID, status).Inc()
	}
	if rotationDuration != nil {
		rotationDuration.WithLabelValues(clientID).Observe(durationSeconds)
	}
}
