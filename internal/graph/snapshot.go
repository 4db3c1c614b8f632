package graph

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/logger"
	"github.com/vidora/recgraph/internal/metrics"
)

// Snapshot is one consistent read of the full graph in dense-index form.
// Each node type gets 0-based indices in store read order plus a random
// Gaussian placeholder feature; structural signal from the topology is
// the sole learning input.
type Snapshot struct {
	Index    map[NodeType]map[string]int
	IDs      map[NodeType][]string
	Features map[NodeType][][]float32
	Edges    map[Relation][]Edge
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Index:    make(map[NodeType]map[string]int),
		IDs:      make(map[NodeType][]string),
		Features: make(map[NodeType][][]float32),
		Edges:    make(map[Relation][]Edge),
	}
}

func (s *Snapshot) NumNodes(t NodeType) int {
	return len(s.IDs[t])
}

// AddNodes registers node ids for a type, assigning dense indices in the
// given order and drawing featureDim-dimensional Gaussian features.
func (s *Snapshot) AddNodes(t NodeType, ids []string, featureDim int, rng *rand.Rand) {
	idx := make(map[string]int, len(ids))
	feats := make([][]float32, len(ids))
	for i, id := range ids {
		idx[id] = i
		f := make([]float32, featureDim)
		for j := range f {
			f[j] = float32(rng.NormFloat64())
		}
		feats[i] = f
	}
	s.Index[t] = idx
	s.IDs[t] = append([]string(nil), ids...)
	s.Features[t] = feats
}

// AddEdge maps an edge from external ids into index space. Edges whose
// endpoints are missing from the mapping are dropped, not errored: they
// are races between sync and load, and the caller counts them.
func (s *Snapshot) AddEdge(r Relation, srcID, dstID string, weight float32) bool {
	srcIdx, ok := s.Index[r.Src][srcID]
	if !ok {
		return false
	}
	dstIdx, ok := s.Index[r.Dst][dstID]
	if !ok {
		return false
	}
	s.Edges[r] = append(s.Edges[r], Edge{Src: srcIdx, Dst: dstIdx, Weight: weight})
	return true
}

// LoadSnapshot reads every node id and edge list from the graph store.
func LoadSnapshot(ctx context.Context, d driver.GraphDriver, featureDim int, rng *rand.Rand, log *logger.Logger) (*Snapshot, error) {
	snap := NewSnapshot()

	for _, t := range NodeTypes() {
		result, err := d.ExecuteQuery(ctx, driver.NodeIDsQuery(t.Label(), t.IDField()), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s nodes: %w", t, err)
		}
		ids := make([]string, 0, len(result.Records))
		for _, rec := range result.Records {
			v, _ := rec.Get("id")
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		}
		snap.AddNodes(t, ids, featureDim, rng)
	}

	for _, r := range Relations() {
		result, err := d.ExecuteQuery(ctx, edgeQuery(r), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s edges: %w", r, err)
		}

		dropped := 0
		for _, rec := range result.Records {
			srcV, _ := rec.Get("src")
			dstV, _ := rec.Get("dst")
			srcID, okSrc := srcV.(string)
			dstID, okDst := dstV.(string)
			if !okSrc || !okDst {
				dropped++
				continue
			}
			if !snap.AddEdge(r, srcID, dstID, edgeWeight(r, rec.AsMap())) {
				dropped++
			}
		}
		if dropped > 0 {
			metrics.DroppedEdges.WithLabelValues(string(r.Edge)).Add(float64(dropped))
			log.Warn("dropped edges with unmapped endpoints", "relation", r.String(), "dropped", dropped)
		}
	}

	return snap, nil
}

func edgeQuery(r Relation) string {
	switch r.Edge {
	case EdgeWatches:
		return driver.WatchesEdgesQuery
	case EdgeLikes:
		return driver.LikesEdgesQuery
	case EdgeBelongsTo:
		return driver.BelongsToEdgesQuery
	case EdgeCreatedBy:
		return driver.CreatedByEdgesQuery
	case EdgeFollows:
		return driver.FollowsEdgesQuery
	case EdgeInterestedIn:
		return driver.InterestedInEdgesQuery
	case EdgeSimilarTo:
		return driver.SimilarToEdgesQuery
	case EdgeParentOf:
		return driver.ParentOfEdgesQuery
	}
	panic(fmt.Sprintf("no edge query for %s", r))
}

// edgeWeight normalizes the per-relation weight. Unweighted relations
// default to 1.0; interest scores are squashed to [0, 1].
func edgeWeight(r Relation, values map[string]any) float32 {
	switch r.Edge {
	case EdgeWatches:
		return float32(numberOr(values["weight"], 1.0))
	case EdgeInterestedIn:
		return float32(math.Min(numberOr(values["score"], 0)/10.0, 1.0))
	case EdgeSimilarTo:
		return float32(numberOr(values["similarity"], 0))
	default:
		return 1.0
	}
}

func numberOr(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return def
}
