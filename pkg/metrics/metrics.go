package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciliation metrics
	ReconcileTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_reconcile_ticks_total",
			Help: "Total number of reconciliation ticks executed",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helios_reconcile_duration_seconds",
			Help:    "Reconciliation tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SupervisorsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "helios_supervisors_running",
			Help: "Number of live job supervisors",
		},
	)

	ExecutionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "helios_executions_total",
			Help: "Number of executions in the persistent map",
		},
	)

	// Failure counters
	PortAllocationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_port_allocation_failures_total",
			Help: "Total number of failed port allocation attempts",
		},
	)

	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_persistence_failures_total",
			Help: "Total number of failed execution map persistence attempts",
		},
	)

	SupervisorOperationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_supervisor_operation_errors_total",
			Help: "Total number of failed supervisor operations by operation",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(ReconcileTicksTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(SupervisorsRunning)
	prometheus.MustRegister(ExecutionsTotal)
	prometheus.MustRegister(PortAllocationFailures)
	prometheus.MustRegister(PersistenceFailures)
	prometheus.MustRegister(SupervisorOperationErrors)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
