package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IncrementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankstream_increments_total",
			Help: "Score increments applied per period window",
		},
		[]string{"period"},
	)
	IncrementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankstream_increment_failures_total",
			Help: "Score increments that failed at the volatile store",
		},
		[]string{"period"},
	)
	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankstream_broadcasts_total",
			Help: "Ranking change events published per period window",
		},
		[]string{"period"},
	)
	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rankstream_connected_clients",
			Help: "Currently registered live push connections",
		},
	)
	DroppedPushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rankstream_dropped_pushes_total",
			Help: "Push deliveries dropped because a connection was slow or dead",
		},
	)
	ReconciliationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankstream_reconciliation_runs_total",
			Help: "Durable sync runs by outcome",
		},
		[]string{"outcome"},
	)
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rankstream_worker_queue_depth",
			Help: "Pending durable-write tasks in the worker pool queue",
		},
	)
)

// Init registers all collectors. Call once from main.
func Init() {
	prometheus.MustRegister(
		IncrementsTotal,
		IncrementFailures,
		BroadcastsTotal,
		ConnectedClients,
		DroppedPushes,
		ReconciliationRuns,
		WorkerQueueDepth,
	)
}
