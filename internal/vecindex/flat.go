// Package vecindex provides an exact inner-product index over dense
// vectors. It is deliberately flat: every query scans every stored
// vector. Approximate, sub-linear structures are out of scope; the index
// is rebuilt wholesale from stored embeddings, never patched.
package vecindex

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"sort"
)

type Flat struct {
	dim     int
	vectors [][]float32
}

func New(dim int) *Flat {
	return &Flat{dim: dim}
}

func (f *Flat) Dim() int { return f.dim }
func (f *Flat) Len() int { return len(f.vectors) }

// Add appends a vector. Callers normalize first; the index stores what it
// is given so that inner product equals cosine for unit vectors.
func (f *Flat) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), f.dim)
	}
	stored := make([]float32, f.dim)
	copy(stored, vec)
	f.vectors = append(f.vectors, stored)
	return nil
}

// Search returns up to k positions ordered by descending inner product
// with the query, ties broken by ascending position.
func (f *Flat) Search(query []float32, k int) ([]int, []float32) {
	if len(query) != f.dim || k <= 0 {
		return nil, nil
	}

	type scored struct {
		pos   int
		score float32
	}
	all := make([]scored, len(f.vectors))
	for i, v := range f.vectors {
		var dot float32
		for j, q := range query {
			dot += q * v[j]
		}
		all[i] = scored{pos: i, score: dot}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score > all[b].score
		}
		return all[a].pos < all[b].pos
	})

	if k > len(all) {
		k = len(all)
	}
	positions := make([]int, k)
	scores := make([]float32, k)
	for i := 0; i < k; i++ {
		positions[i] = all[i].pos
		scores[i] = all[i].score
	}
	return positions, scores
}

// Normalize scales the vector to unit L2 norm in place. Zero vectors are
// left untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

type flatState struct {
	Dim     int
	Vectors [][]float32
}

func (f *Flat) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(flatState{Dim: f.dim, Vectors: f.vectors}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

func Load(r io.Reader) (*Flat, error) {
	var state flatState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	return &Flat{dim: state.Dim, vectors: state.Vectors}, nil
}
