// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_sync_requests_total",
			Help: "Total number of remote sync requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_sync_duration_seconds",
			Help:    "Duration of remote sync requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SyncQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_sync_queue_tasks",
			Help: "Number of sync tasks per state",
		},
		[]string{"state"},
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_mutations_total",
			Help: "Total number of local store mutations by operation",
		},
		[]string{"operation"},
	)
)
