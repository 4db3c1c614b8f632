// Package metrics exposes the engine's operational counters. Snapshot
// drift (edges referencing ids missing from the current mapping) and
// dual-write failures are silent in the data path, so they must be
// observable here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recgraph_sync_ops_total",
		Help: "Graph sync operations by entity kind.",
	}, []string{"kind"})

	InterestWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recgraph_interest_write_failures_total",
		Help: "Relational interest-aggregate writes that failed after the graph write succeeded.",
	})

	DroppedEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recgraph_snapshot_dropped_edges_total",
		Help: "Edges dropped during snapshot load because an endpoint id was not mapped.",
	}, []string{"relation"})

	SkippedInteractions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recgraph_training_skipped_interactions_total",
		Help: "Training interactions skipped because an endpoint was missing from the node mapping.",
	})

	TrainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recgraph_training_runs_total",
		Help: "Training runs by outcome.",
	}, []string{"outcome"})

	IndexRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recgraph_index_rebuilds_total",
		Help: "Vector index rebuilds.",
	})

	SimilarityEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recgraph_similarity_edges_total",
		Help: "SIMILAR_TO edges created or refreshed by similarity computation.",
	})
)
