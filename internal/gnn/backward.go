package gnn

import "github.com/vidora/recgraph/internal/graph"

// SeedGrad carries the loss gradient for a handful of output rows, keyed
// by node type and snapshot index. BPR touches three rows per
// interaction; everything else starts at zero.
type SeedGrad map[graph.NodeType]map[int][]float32

func (s SeedGrad) Add(t graph.NodeType, idx int, grad []float32) {
	if s[t] == nil {
		s[t] = make(map[int][]float32)
	}
	row := s[t][idx]
	if row == nil {
		row = make([]float32, len(grad))
		s[t][idx] = row
	}
	for j, v := range grad {
		row[j] += v
	}
}

// Backward propagates the seed gradient through the cached forward pass,
// accumulating parameter gradients. Call ZeroGrad before the forward pass
// of each step.
func (m *Model) Backward(g *GraphTensors, cache *forwardCache, seed SeedGrad) {
	grads := make(map[graph.NodeType][][]float32, len(graph.NodeTypes()))
	for _, t := range graph.NodeTypes() {
		grads[t] = zeros(g.NumNodes[t], m.Cfg.HiddenDim)
	}
	for t, rows := range seed {
		for i, row := range rows {
			for j, v := range row {
				grads[t][i][j] += v
			}
		}
	}

	for layer := m.Cfg.NumLayers - 1; layer >= 0; layer-- {
		lc := cache.layers[layer]

		// out[t] = pre[t] + Σ branch outputs; the residual path passes
		// grads[t] through unchanged, each branch adds its own share.
		contrib := make(map[graph.NodeType][][]float32)
		for _, bc := range lc.branches {
			dOut := grads[bc.rel.Dst]

			dNorm := zeros(len(dOut), m.Cfg.HiddenDim)
			for i := range dOut {
				for j, v := range dOut[i] {
					if bc.relu[i][j] <= 0 {
						continue
					}
					if bc.dropMask != nil {
						v *= bc.dropMask[i][j]
					}
					dNorm[i][j] = v
				}
			}

			dConv := m.norms[layer].Backward(bc.norm, dNorm)
			dAgg := m.convs[layer].Backward(bc.agg, dConv)
			dPre := g.adj[bc.rel].applyT(dAgg)

			if contrib[bc.rel.Src] == nil {
				contrib[bc.rel.Src] = zeros(g.NumNodes[bc.rel.Src], m.Cfg.HiddenDim)
			}
			addInto(contrib[bc.rel.Src], dPre)
		}

		for t, extra := range contrib {
			addInto(grads[t], extra)
		}
	}

	for _, t := range graph.NodeTypes() {
		if g.NumNodes[t] == 0 {
			continue
		}
		m.inProj[t].Backward(g.X[t], grads[t])
	}
}
