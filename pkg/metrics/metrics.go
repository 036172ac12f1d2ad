// Package metrics exposes the Prometheus collectors produced by the fleet
// orchestration engines: remote execution, the security pipeline, service
// deployers, and the data-lake syncer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote execution engine (pkg/remote)
	RemoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_remote_calls_total",
			Help: "Total remote engine calls by operation and result kind",
		},
		[]string{"op", "kind"},
	)

	RemoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_remote_call_duration_seconds",
			Help:    "Remote engine call duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	RemoteRateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_remote_rate_limit_waits_total",
			Help: "Total times a new SSH dial waited on the per-host connection limiter",
		},
		[]string{"host"},
	)

	// Security pipeline (pkg/security)
	SecurityStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_security_step_duration_seconds",
			Help:    "Security pipeline step duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	SecurityStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_security_steps_total",
			Help: "Total security pipeline step completions by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	// Service deployers (pkg/deploy)
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_deployments_total",
			Help: "Total service deployments by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DeploymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_deployment_duration_seconds",
			Help:    "Service deployment duration in seconds by kind",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	// Data-lake syncer (pkg/datalake, pkg/transfer, pkg/retention)
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_datalake_sync_duration_seconds",
			Help:    "Data-lake sync duration in seconds by profile",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"profile"},
	)

	SyncBytesTransferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_datalake_sync_bytes_total",
			Help: "Total bytes transferred by profile",
		},
		[]string{"profile"},
	)

	SyncFilesTransferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_datalake_sync_files_total",
			Help: "Total files transferred by profile",
		},
		[]string{"profile"},
	)

	SyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_datalake_syncs_total",
			Help: "Total sync cycles by profile and status",
		},
		[]string{"profile", "status"},
	)

	RetentionFreedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_datalake_retention_freed_bytes_total",
			Help: "Total bytes freed by retention GC by profile",
		},
		[]string{"profile"},
	)

	// Orchestrator (pkg/orchestrator)
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_orchestrator_phase_duration_seconds",
			Help:    "Orchestrator phase duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	PhaseResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_orchestrator_phase_results_total",
			Help: "Total orchestrator phase results by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RemoteCallsTotal,
		RemoteCallDuration,
		RemoteRateLimitWaits,
		SecurityStepDuration,
		SecurityStepsTotal,
		DeploymentsTotal,
		DeploymentDuration,
		SyncDuration,
		SyncBytesTransferred,
		SyncFilesTransferred,
		SyncsTotal,
		RetentionFreedBytes,
		PhaseDuration,
		PhaseResultsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and observing the result into a
// histogram (with or without labels) when the operation completes.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer started at the current time.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
