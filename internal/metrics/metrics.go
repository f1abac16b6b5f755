package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questgraph_mutations_total",
		Help: "Accepted graph mutations, labelled by change kind.",
	}, []string{"kind"})

	MutationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questgraph_mutations_rejected_total",
		Help: "Mutations refused as disallowed transitions, labelled by operation.",
	}, []string{"op"})

	VisibilityToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questgraph_visibility_toggles_total",
		Help: "Descendant visibility toggles that changed at least one card.",
	})

	SnapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questgraph_snapshot_saves_total",
		Help: "Snapshot writes to the store, labelled by status.",
	}, []string{"status"})

	SnapshotSavesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questgraph_snapshot_saves_dropped_total",
		Help: "Snapshot writes dropped because the writer queue was full.",
	})

	SnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questgraph_snapshot_loads_total",
		Help: "World loads, labelled by outcome (restored, missing, malformed, error).",
	}, []string{"outcome"})

	SnapshotSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "questgraph_snapshot_save_duration_ms",
		Help:    "Snapshot write latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	OpenWorlds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "questgraph_open_worlds",
		Help: "Number of worlds with a live editing session.",
	})

	WriterQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "questgraph_writer_queue_utilization_ratio",
		Help: "Current snapshot writer queue utilization (0-1).",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questgraph_http_requests_total",
		Help: "HTTP requests served, labelled by method and status code.",
	}, []string{"method", "code"})

	HTTPDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "questgraph_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
