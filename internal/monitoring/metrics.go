package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "status"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_sweep_duration_seconds",
			Help:    "Duration of one scheduler sweep over live events",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	sweepActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_actions_total",
			Help: "Automatic actions taken by the scheduler",
		},
		[]string{"action"},
	)

	notificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Push notifications handed to the broker",
		},
		[]string{"kind", "status"},
	)
)

// ObserveOperation records the outcome of one queue operation.
func ObserveOperation(operation, status string) {
	queueOperations.WithLabelValues(operation, status).Inc()
}

// ObserveSweep records the duration and actions of one scheduler pass.
func ObserveSweep(seconds float64, autoSkipped, autoCalled, finished int) {
	sweepDuration.Observe(seconds)
	sweepActions.WithLabelValues("auto_skip").Add(float64(autoSkipped))
	sweepActions.WithLabelValues("auto_call").Add(float64(autoCalled))
	sweepActions.WithLabelValues("finish_session").Add(float64(finished))
}

// ObserveNotification records one publish attempt.
func ObserveNotification(kind, status string) {
	notificationsPublished.WithLabelValues(kind, status).Inc()
}
