// Package gnn implements the heterogeneous graph convolution network that
// produces node embeddings. The architecture is fixed: per-type input
// projections into a shared hidden dimension, then a stack of
// convolution layers applied only to relations whose source and
// destination node types match. Heterogeneity across types is realized by
// the separate projections and the final cross-type dot-product score,
// not by cross-type convolution.
//
// No autograd runs underneath; the backward pass is derived by hand for
// this fixed architecture, which keeps the package dependency-free and
// the gradients checkable against finite differences.
package gnn

import (
	"math/rand"

	"github.com/vidora/recgraph/internal/graph"
)

type Config struct {
	HiddenDim  int
	NumLayers  int
	FeatureDim int
	Dropout    float64
}

func (c Config) withDefaults() Config {
	if c.HiddenDim == 0 {
		c.HiddenDim = 128
	}
	if c.NumLayers == 0 {
		c.NumLayers = 3
	}
	if c.FeatureDim == 0 {
		c.FeatureDim = 64
	}
	if c.Dropout == 0 {
		c.Dropout = 0.3
	}
	return c
}

type Model struct {
	Cfg Config

	inProj map[graph.NodeType]*Linear
	convs  []*Linear
	norms  []*LayerNorm
}

func NewModel(cfg Config, rng *rand.Rand) *Model {
	cfg = cfg.withDefaults()
	m := &Model{
		Cfg:    cfg,
		inProj: make(map[graph.NodeType]*Linear, len(graph.NodeTypes())),
		convs:  make([]*Linear, cfg.NumLayers),
		norms:  make([]*LayerNorm, cfg.NumLayers),
	}
	for _, t := range graph.NodeTypes() {
		m.inProj[t] = NewLinear(cfg.FeatureDim, cfg.HiddenDim, rng)
	}
	for i := 0; i < cfg.NumLayers; i++ {
		m.convs[i] = NewLinear(cfg.HiddenDim, cfg.HiddenDim, rng)
		m.norms[i] = NewLayerNorm(cfg.HiddenDim)
	}
	return m
}

func (m *Model) params() []param {
	var ps []param
	for _, t := range graph.NodeTypes() {
		ps = append(ps, m.inProj[t].params()...)
	}
	for i := range m.convs {
		ps = append(ps, m.convs[i].params()...)
		ps = append(ps, m.norms[i].params()...)
	}
	return ps
}

// ZeroGrad clears every accumulated gradient.
func (m *Model) ZeroGrad() {
	for _, p := range m.params() {
		for i := range p.grad {
			p.grad[i] = 0
		}
	}
}

// GraphTensors is a snapshot compiled for the model: placeholder features
// plus normalized adjacency operators for the same-type relations.
type GraphTensors struct {
	X        map[graph.NodeType][][]float32
	NumNodes map[graph.NodeType]int
	adj      map[graph.Relation]*adjacency
	sameType []graph.Relation
}

func FromSnapshot(s *graph.Snapshot) *GraphTensors {
	g := &GraphTensors{
		X:        make(map[graph.NodeType][][]float32),
		NumNodes: make(map[graph.NodeType]int),
		adj:      make(map[graph.Relation]*adjacency),
	}
	for _, t := range graph.NodeTypes() {
		g.X[t] = s.Features[t]
		g.NumNodes[t] = s.NumNodes(t)
	}
	for _, r := range graph.Relations() {
		if !r.SameType() {
			continue
		}
		edges := s.Edges[r]
		if len(edges) == 0 {
			continue
		}
		g.adj[r] = newAdjacency(s.NumNodes(r.Src), edges)
		g.sameType = append(g.sameType, r)
	}
	return g
}

// branchCache holds the intermediates of one relation's convolution
// branch inside one layer, in forward order.
type branchCache struct {
	rel      graph.Relation
	agg      [][]float32 // A·h, the convolution input after aggregation
	norm     *normCache
	relu     [][]float32 // post-ReLU activations (the ReLU mask)
	dropMask [][]float32 // inverted-dropout scale factors, nil in eval mode
}

type layerCache struct {
	branches []*branchCache
}

type forwardCache struct {
	h0     map[graph.NodeType][][]float32 // post-projection representations
	layers []*layerCache
}

// Forward runs the full-graph forward pass. In training mode dropout
// masks are drawn from rng; in eval mode rng may be nil and dropout is
// the identity. The returned cache feeds Backward.
func (m *Model) Forward(g *GraphTensors, training bool, rng *rand.Rand) (map[graph.NodeType][][]float32, *forwardCache) {
	cache := &forwardCache{h0: make(map[graph.NodeType][][]float32)}

	cur := make(map[graph.NodeType][][]float32, len(graph.NodeTypes()))
	for _, t := range graph.NodeTypes() {
		h := m.inProj[t].Forward(g.X[t])
		cache.h0[t] = h
		cur[t] = h
	}

	for layer := 0; layer < m.Cfg.NumLayers; layer++ {
		lc := &layerCache{}
		next := make(map[graph.NodeType][][]float32, len(cur))
		for t, h := range cur {
			next[t] = h
		}

		// Branch outputs for a destination type are summed across its
		// same-type relations, then added residually.
		delta := make(map[graph.NodeType][][]float32)
		for _, rel := range g.sameType {
			bc := &branchCache{rel: rel}
			bc.agg = g.adj[rel].apply(cur[rel.Src])
			conv := m.convs[layer].Forward(bc.agg)
			normed, nc := m.norms[layer].Forward(conv)
			bc.norm = nc
			bc.relu = relu(normed)

			out := bc.relu
			if training {
				out, bc.dropMask = dropout(bc.relu, m.Cfg.Dropout, rng)
			}

			if delta[rel.Dst] == nil {
				delta[rel.Dst] = zeros(len(out), m.Cfg.HiddenDim)
			}
			addInto(delta[rel.Dst], out)
			lc.branches = append(lc.branches, bc)
		}

		for t, d := range delta {
			sum := zeros(len(cur[t]), m.Cfg.HiddenDim)
			addInto(sum, cur[t])
			addInto(sum, d)
			next[t] = sum
		}

		cache.layers = append(cache.layers, lc)
		cur = next
	}

	return cur, cache
}

func relu(x [][]float32) [][]float32 {
	y := zeros(len(x), colsOf(x))
	for i := range x {
		for j, v := range x[i] {
			if v > 0 {
				y[i][j] = v
			}
		}
	}
	return y
}

// dropout applies inverted dropout: kept activations are scaled by
// 1/(1-rate) so eval mode needs no rescaling.
func dropout(x [][]float32, rate float64, rng *rand.Rand) ([][]float32, [][]float32) {
	scale := float32(1.0 / (1.0 - rate))
	y := zeros(len(x), colsOf(x))
	mask := zeros(len(x), colsOf(x))
	for i := range x {
		for j, v := range x[i] {
			if rng.Float64() >= rate {
				mask[i][j] = scale
				y[i][j] = v * scale
			}
		}
	}
	return y, mask
}

func colsOf(x [][]float32) int {
	if len(x) == 0 {
		return 0
	}
	return len(x[0])
}
