// Package metrics captures bill lifecycle and cleanup health signals.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// BillMetrics instruments lifecycle operations and the cleanup sweep.
type BillMetrics struct {
	lifecycleOps     *prometheus.CounterVec
	cleanupRuns      prometheus.Counter
	cleanupCancelled prometheus.Counter
	cleanupErrors    prometheus.Counter
	cleanupDuration  prometheus.Observer
}

var (
	billMetricsOnce sync.Once
	billMetrics     *BillMetrics
)

// Bill returns the singleton bill metrics registry.
func Bill() *BillMetrics {
	return BillWithConfig(Config{})
}

// BillWithConfig returns the singleton bill metrics registry using config labels.
func BillWithConfig(cfg Config) *BillMetrics {
	billMetricsOnce.Do(func() {
		billMetrics = newBillMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billMetrics
}

// ResetBillMetricsForTest resets the bill metrics singleton for tests.
func ResetBillMetricsForTest() {
	billMetricsOnce = sync.Once{}
	billMetrics = nil
}

func newBillMetrics(registerer prometheus.Registerer, cfg Config) *BillMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "billorder"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	lifecycleOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "billorder_lifecycle_operations_total",
		Help:        "Bill lifecycle operations by operation and result.",
		ConstLabels: constLabels,
	}, []string{"operation", "result"})
	cleanupRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "billorder_cleanup_runs_total",
		Help:        "Cleanup sweep executions.",
		ConstLabels: constLabels,
	})
	cleanupCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "billorder_cleanup_cancelled_total",
		Help:        "Bills auto-cancelled by the cleanup sweep.",
		ConstLabels: constLabels,
	})
	cleanupErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "billorder_cleanup_errors_total",
		Help:        "Per-bill failures during the cleanup sweep.",
		ConstLabels: constLabels,
	})
	cleanupDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "billorder_cleanup_duration_seconds",
		Help:        "Cleanup sweep latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		lifecycleOps,
		cleanupRuns,
		cleanupCancelled,
		cleanupErrors,
		cleanupDuration,
	)

	return &BillMetrics{
		lifecycleOps:     lifecycleOps,
		cleanupRuns:      cleanupRuns,
		cleanupCancelled: cleanupCancelled,
		cleanupErrors:    cleanupErrors,
		cleanupDuration:  cleanupDuration,
	}
}

func (m *BillMetrics) IncLifecycleOp(operation, result string) {
	if m == nil {
		return
	}
	m.lifecycleOps.WithLabelValues(operation, result).Inc()
}

func (m *BillMetrics) IncCleanupRun() {
	if m == nil {
		return
	}
	m.cleanupRuns.Inc()
}

func (m *BillMetrics) AddCleanupCancelled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupCancelled.Add(float64(n))
}

func (m *BillMetrics) AddCleanupErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupErrors.Add(float64(n))
}

func (m *BillMetrics) ObserveCleanupDuration(d time.Duration) {
	if m == nil || d < 0 {
		return
	}
	m.cleanupDuration.Observe(d.Seconds())
}
