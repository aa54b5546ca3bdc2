package reconcile

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for payment reconciliation.
type Metrics struct {
	applied      *prometheus.CounterVec
	replayed     prometheus.Counter
	lineFailures *prometheus.CounterVec
	duration     prometheus.Histogram
}

var (
	metricsOnce     sync.Once
	metricsRegistry *Metrics
)

// NewMetrics returns the lazily-initialised reconciliation metrics
// registry, registered against the default registerer.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsRegistry = &Metrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fanclub",
				Subsystem: "reconcile",
				Name:      "applied_total",
				Help:      "Confirmed payments applied, segmented by rail.",
			}, []string{"rail"}),
			replayed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "fanclub",
				Subsystem: "reconcile",
				Name:      "replayed_total",
				Help:      "Reconciliation calls answered from a prior confirmed result.",
			}),
			lineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fanclub",
				Subsystem: "reconcile",
				Name:      "line_failures_total",
				Help:      "Cart lines that failed to apply, segmented by reason.",
			}, []string{"reason"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "fanclub",
				Subsystem: "reconcile",
				Name:      "apply_duration_seconds",
				Help:      "Latency distribution of reconciliation attempts.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			metricsRegistry.applied,
			metricsRegistry.replayed,
			metricsRegistry.lineFailures,
			metricsRegistry.duration,
		)
	})
	return metricsRegistry
}
