package gnn

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/vidora/recgraph/internal/graph"
)

type linearState struct {
	In  int
	Out int
	W   [][]float32
	B   []float32
}

type normState struct {
	Dim   int
	Gamma []float32
	Beta  []float32
}

type modelState struct {
	Cfg    Config
	InProj map[string]linearState
	Convs  []linearState
	Norms  []normState
}

// Save writes the model weights as a gob blob. Gradients and optimizer
// state are not persisted; a reloaded model starts a fresh optimizer.
func (m *Model) Save(w io.Writer) error {
	state := modelState{
		Cfg:    m.Cfg,
		InProj: make(map[string]linearState, len(m.inProj)),
	}
	for t, l := range m.inProj {
		state.InProj[string(t)] = linearState{In: l.In, Out: l.Out, W: l.W, B: l.B}
	}
	for _, l := range m.convs {
		state.Convs = append(state.Convs, linearState{In: l.In, Out: l.Out, W: l.W, B: l.B})
	}
	for _, n := range m.norms {
		state.Norms = append(state.Norms, normState{Dim: n.Dim, Gamma: n.Gamma, Beta: n.Beta})
	}
	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("failed to encode model weights: %w", err)
	}
	return nil
}

// Load reads a model saved with Save.
func Load(r io.Reader) (*Model, error) {
	var state modelState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode model weights: %w", err)
	}

	m := &Model{
		Cfg:    state.Cfg.withDefaults(),
		inProj: make(map[graph.NodeType]*Linear, len(state.InProj)),
	}
	for name, ls := range state.InProj {
		m.inProj[graph.NodeType(name)] = restoreLinear(ls)
	}
	for _, ls := range state.Convs {
		m.convs = append(m.convs, restoreLinear(ls))
	}
	for _, ns := range state.Norms {
		n := NewLayerNorm(ns.Dim)
		n.Gamma = ns.Gamma
		n.Beta = ns.Beta
		m.norms = append(m.norms, n)
	}

	if len(m.convs) != m.Cfg.NumLayers || len(m.norms) != m.Cfg.NumLayers {
		return nil, fmt.Errorf("model weights inconsistent with config: %d conv layers, %d norms, want %d",
			len(m.convs), len(m.norms), m.Cfg.NumLayers)
	}
	return m, nil
}

func restoreLinear(ls linearState) *Linear {
	return &Linear{
		In:  ls.In,
		Out: ls.Out,
		W:   ls.W,
		B:   ls.B,
		gW:  zeros(ls.In, ls.Out),
		gB:  make([]float32, ls.Out),
	}
}
