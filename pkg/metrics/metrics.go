// Package metrics exposes the process-local Prometheus registry used by the
// coordinator. Nothing here serves HTTP: per the core's scope, health/metrics
// probes are an external, read-only concern. Dashboard (pkg/queueview) writes
// the registry out as a Prometheus textfile for an external node_exporter
// textfile collector to pick up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WorkItemsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workclaim_work_items_total",
			Help: "Work items by status",
		},
		[]string{"status"},
	)

	AgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workclaim_agents_total",
			Help: "Registered agents by status",
		},
		[]string{"status"},
	)

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workclaim_claims_total",
			Help: "Total claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	ClaimLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workclaim_claim_latency_seconds",
			Help:    "Time taken to commit a claim operation",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workclaim_lock_wait_seconds",
			Help:    "Time spent waiting to acquire the state-store lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockBusyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workclaim_lock_busy_total",
			Help: "Total lock acquisitions that timed out (BUSY)",
		},
	)

	SpanWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workclaim_span_write_failures_total",
			Help: "Total span-log append failures (operation still proceeds)",
		},
	)

	MaintenanceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workclaim_maintenance_runs_total",
			Help: "Total maintenance job runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	MaintenanceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workclaim_maintenance_duration_seconds",
			Help:    "Maintenance job duration by job",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	InvariantViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workclaim_invariant_violations_total",
			Help: "Invariant violations found by reality_verify, by invariant tag",
		},
		[]string{"invariant"},
	)
)

// Registry is the registry every gauge/counter above is registered to. It is
// a dedicated registry (not prometheus.DefaultRegisterer) so that writing the
// textfile output never picks up process/go-runtime collectors by accident.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		WorkItemsTotal,
		AgentsTotal,
		ClaimsTotal,
		ClaimLatency,
		LockWaitDuration,
		LockBusyTotal,
		SpanWriteFailuresTotal,
		MaintenanceRunsTotal,
		MaintenanceDuration,
		InvariantViolationsTotal,
	)
}

// Timer is a small helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(h prometheus.ObserverVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
