package gnn

import (
	"math"
	"math/rand"

	"github.com/vidora/recgraph/internal/graph"
)

// param is one gradient-carrying parameter vector. Matrices expose one
// param per row so the optimizer can stay shape-agnostic.
type param struct {
	val  []float32
	grad []float32
}

// Linear is a dense affine map, out = x·W + b, with W laid out in×out.
type Linear struct {
	In, Out int
	W       [][]float32
	B       []float32

	gW [][]float32
	gB []float32
}

// NewLinear initializes weights uniformly in ±1/sqrt(in).
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	bound := 1.0 / math.Sqrt(float64(in))
	l := &Linear{
		In:  in,
		Out: out,
		W:   zeros(in, out),
		B:   make([]float32, out),
		gW:  zeros(in, out),
		gB:  make([]float32, out),
	}
	for i := range l.W {
		for j := range l.W[i] {
			l.W[i][j] = float32((rng.Float64()*2 - 1) * bound)
		}
	}
	for j := range l.B {
		l.B[j] = float32((rng.Float64()*2 - 1) * bound)
	}
	return l
}

func (l *Linear) Forward(x [][]float32) [][]float32 {
	y := zeros(len(x), l.Out)
	for i, row := range x {
		out := y[i]
		copy(out, l.B)
		for k, v := range row {
			if v == 0 {
				continue
			}
			w := l.W[k]
			for j := range out {
				out[j] += v * w[j]
			}
		}
	}
	return y
}

// Backward accumulates weight gradients and returns the input gradient.
// x must be the forward input.
func (l *Linear) Backward(x, dy [][]float32) [][]float32 {
	dx := zeros(len(x), l.In)
	for i := range x {
		g := dy[i]
		for j, gj := range g {
			l.gB[j] += gj
		}
		for k, v := range x[i] {
			w := l.W[k]
			gw := l.gW[k]
			var acc float32
			for j, gj := range g {
				gw[j] += v * gj
				acc += w[j] * gj
			}
			dx[i][k] = acc
		}
	}
	return dx
}

func (l *Linear) params() []param {
	ps := make([]param, 0, l.In+1)
	for i := range l.W {
		ps = append(ps, param{val: l.W[i], grad: l.gW[i]})
	}
	ps = append(ps, param{val: l.B, grad: l.gB})
	return ps
}

// LayerNorm normalizes each row to zero mean and unit variance, then
// applies a learned affine transform.
type LayerNorm struct {
	Dim   int
	Gamma []float32
	Beta  []float32

	gGamma []float32
	gBeta  []float32
}

const layerNormEps = 1e-5

func NewLayerNorm(dim int) *LayerNorm {
	n := &LayerNorm{
		Dim:    dim,
		Gamma:  make([]float32, dim),
		Beta:   make([]float32, dim),
		gGamma: make([]float32, dim),
		gBeta:  make([]float32, dim),
	}
	for i := range n.Gamma {
		n.Gamma[i] = 1
	}
	return n
}

type normCache struct {
	xhat   [][]float32
	invStd []float32
}

func (n *LayerNorm) Forward(x [][]float32) ([][]float32, *normCache) {
	y := zeros(len(x), n.Dim)
	cache := &normCache{xhat: zeros(len(x), n.Dim), invStd: make([]float32, len(x))}
	for i, row := range x {
		var mean float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(n.Dim)

		var variance float64
		for _, v := range row {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(n.Dim)

		invStd := float32(1.0 / math.Sqrt(variance+layerNormEps))
		cache.invStd[i] = invStd
		for j, v := range row {
			xh := (v - float32(mean)) * invStd
			cache.xhat[i][j] = xh
			y[i][j] = xh*n.Gamma[j] + n.Beta[j]
		}
	}
	return y, cache
}

func (n *LayerNorm) Backward(cache *normCache, dy [][]float32) [][]float32 {
	dx := zeros(len(dy), n.Dim)
	dim := float32(n.Dim)
	for i := range dy {
		xhat := cache.xhat[i]
		invStd := cache.invStd[i]

		var sumDxhat, sumDxhatXhat float32
		dxhat := make([]float32, n.Dim)
		for j, g := range dy[i] {
			n.gGamma[j] += g * xhat[j]
			n.gBeta[j] += g
			dxhat[j] = g * n.Gamma[j]
			sumDxhat += dxhat[j]
			sumDxhatXhat += dxhat[j] * xhat[j]
		}
		for j := range dxhat {
			dx[i][j] = invStd / dim * (dim*dxhat[j] - sumDxhat - xhat[j]*sumDxhatXhat)
		}
	}
	return dx
}

func (n *LayerNorm) params() []param {
	return []param{
		{val: n.Gamma, grad: n.gGamma},
		{val: n.Beta, grad: n.gBeta},
	}
}

// adjacency is the degree-normalized message-passing operator for one
// same-type relation: self-loops added, coefficients 1/sqrt(d_src·d_dst)
// with d counting incoming edges plus the self-loop. Edge weights do not
// participate; heterogeneous weighting lives in the loss, not the
// convolution.
type adjacency struct {
	n     int
	src   []int
	dst   []int
	coeff []float32
}

func newAdjacency(n int, edges []graph.Edge) *adjacency {
	deg := make([]float32, n)
	for i := range deg {
		deg[i] = 1 // self-loop
	}
	for _, e := range edges {
		deg[e.Dst]++
	}

	a := &adjacency{
		n:     n,
		src:   make([]int, 0, len(edges)+n),
		dst:   make([]int, 0, len(edges)+n),
		coeff: make([]float32, 0, len(edges)+n),
	}
	for _, e := range edges {
		a.src = append(a.src, e.Src)
		a.dst = append(a.dst, e.Dst)
		a.coeff = append(a.coeff, float32(1.0/math.Sqrt(float64(deg[e.Src])*float64(deg[e.Dst]))))
	}
	for i := 0; i < n; i++ {
		a.src = append(a.src, i)
		a.dst = append(a.dst, i)
		a.coeff = append(a.coeff, 1.0/deg[i])
	}
	return a
}

// apply computes y = A·x.
func (a *adjacency) apply(x [][]float32) [][]float32 {
	dim := 0
	if len(x) > 0 {
		dim = len(x[0])
	}
	y := zeros(a.n, dim)
	for k, s := range a.src {
		c := a.coeff[k]
		row := x[s]
		out := y[a.dst[k]]
		for j, v := range row {
			out[j] += c * v
		}
	}
	return y
}

// applyT computes y = Aᵀ·g, routing output gradients back to sources.
func (a *adjacency) applyT(g [][]float32) [][]float32 {
	dim := 0
	if len(g) > 0 {
		dim = len(g[0])
	}
	y := zeros(a.n, dim)
	for k, s := range a.src {
		c := a.coeff[k]
		row := g[a.dst[k]]
		out := y[s]
		for j, v := range row {
			out[j] += c * v
		}
	}
	return y
}

func zeros(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	backing := make([]float32, rows*cols)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols]
	}
	return m
}

func addInto(dst, src [][]float32) {
	for i := range src {
		for j, v := range src[i] {
			dst[i][j] += v
		}
	}
}
