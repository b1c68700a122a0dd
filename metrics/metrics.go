package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bridge engine counters and histograms, partitioned by network or direction.

var (
	// Engine
	TransactionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "engine",
		Name:      "transactions_created_total",
		Help:      "Total bridge transactions created",
	}, []string{"direction"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "engine",
		Name:      "status_transitions_total",
		Help:      "Total persisted status changes by target status",
	}, []string{"status"})

	RejectedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "engine",
		Name:      "rejected_requests_total",
		Help:      "Total operations rejected by validation",
	}, []string{"operation", "reason"})

	// Adapters
	AdapterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "adapter",
		Name:      "calls_total",
		Help:      "Total network adapter calls by outcome",
	}, []string{"network", "operation", "outcome"})

	AdapterLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "adapter",
		Name:      "call_duration_seconds",
		Help:      "Network adapter call duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"network", "operation"})

	AdapterHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "adapter",
		Name:      "healthy",
		Help:      "1 when the network connection check passes",
	}, []string{"network"})

	// Watcher
	WatcherPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "watcher",
		Name:      "polls_total",
		Help:      "Total confirmation watcher polls",
	})

	WatcherOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "watcher",
		Name:      "outcomes_total",
		Help:      "Per-transaction watcher outcomes",
	}, []string{"outcome"})
)
