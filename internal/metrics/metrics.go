// Package metrics exposes Prometheus collectors for every stage of
// the hot-swap pipeline: file-change detection, bytecode validation,
// redefinition and rollback, snapshotting, and quarantine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the agent emits. One instance is
// constructed per process and threaded into each pipeline stage.
type Metrics struct {
	FilesChangedTotal        prometheus.Counter
	FilesIgnoredTotal        *prometheus.CounterVec
	BytecodeValidatedTotal   prometheus.Counter
	BytecodeRejectedTotal    *prometheus.CounterVec
	RedefinitionsSucceeded   prometheus.Counter
	RedefinitionsFailed      *prometheus.CounterVec
	RollbacksTotal           *prometheus.CounterVec
	ClassesQuarantinedTotal  prometheus.Counter
	ClassesQuarantinedActive prometheus.Gauge
	SnapshotsActive          prometheus.Gauge
	RedefineLatencySeconds   prometheus.Histogram
	DebounceToForwardSeconds prometheus.Histogram
}

// New registers every collector under namespace (typically "bytehot")
// against reg. Passing a fresh prometheus.NewRegistry() per test keeps
// collector registration isolated across parallel test packages.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FilesChangedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "files_changed_total",
			Help:      "Total number of debounced file-change events forwarded by the watcher.",
		}),
		FilesIgnoredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "files_ignored_total",
			Help:      "Total number of file-system events ignored, by reason.",
		}, []string{"reason"}),
		BytecodeValidatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "validated_total",
			Help:      "Total number of bytecode changes accepted as hot-swap compatible.",
		}),
		BytecodeRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "rejected_total",
			Help:      "Total number of bytecode changes rejected, by category.",
		}, []string{"category"}),
		RedefinitionsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redefine",
			Name:      "succeeded_total",
			Help:      "Total number of successful in-place class redefinitions.",
		}),
		RedefinitionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redefine",
			Name:      "failed_total",
			Help:      "Total number of failed class redefinitions, by runtime error category.",
		}, []string{"category"}),
		RollbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redefine",
			Name:      "rollbacks_total",
			Help:      "Total number of post-failure rollback attempts, by result.",
		}, []string{"result"}),
		ClassesQuarantinedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quarantine",
			Name:      "entered_total",
			Help:      "Total number of times a class entered quarantine.",
		}),
		ClassesQuarantinedActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quarantine",
			Name:      "active",
			Help:      "Current number of classes under quarantine.",
		}),
		SnapshotsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "active",
			Help:      "Current number of retained pre-redefinition snapshots.",
		}),
		RedefineLatencySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redefine",
			Name:      "latency_seconds",
			Help:      "Latency of a redefine attempt from dispatch to outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		DebounceToForwardSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "debounce_to_forward_seconds",
			Help:      "Latency from the first observed write to the debounced forward.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}
