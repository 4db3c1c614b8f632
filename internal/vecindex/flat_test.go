package vecindex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOrdersByInnerProduct(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add([]float32{1, 0}))
	require.NoError(t, idx.Add([]float32{0, 1}))
	require.NoError(t, idx.Add([]float32{0.8, 0.6}))

	positions, scores := idx.Search([]float32{1, 0}, 3)

	assert.Equal(t, []int{0, 2, 1}, positions)
	assert.InDelta(t, 1.0, scores[0], 1e-6)
	assert.InDelta(t, 0.8, scores[1], 1e-6)
	assert.InDelta(t, 0.0, scores[2], 1e-6)
}

func TestSearchBreaksTiesByPosition(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add([]float32{1, 0}))
	require.NoError(t, idx.Add([]float32{1, 0}))
	require.NoError(t, idx.Add([]float32{1, 0}))

	positions, _ := idx.Search([]float32{1, 0}, 3)

	assert.Equal(t, []int{0, 1, 2}, positions)
}

func TestSearchCapsAtIndexSize(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add([]float32{1, 0}))

	positions, scores := idx.Search([]float32{1, 0}, 10)

	assert.Len(t, positions, 1)
	assert.Len(t, scores, 1)
}

func TestSearchRejectsBadInput(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add([]float32{1, 0}))

	positions, _ := idx.Search([]float32{1, 0, 0}, 1)
	assert.Nil(t, positions)

	positions, _ = idx.Search([]float32{1, 0}, 0)
	assert.Nil(t, positions)
}

func TestAddRejectsWrongDimension(t *testing.T) {
	idx := New(2)
	assert.Error(t, idx.Add([]float32{1, 2, 3}))
	assert.Zero(t, idx.Len())
}

func TestAddCopiesVector(t *testing.T) {
	idx := New(2)
	v := []float32{1, 0}
	require.NoError(t, idx.Add(v))

	v[0] = -1
	positions, scores := idx.Search([]float32{1, 0}, 1)
	assert.Equal(t, []int{0}, positions)
	assert.InDelta(t, 1.0, scores[0], 1e-6, "stored vector must not alias the caller's slice")
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := New(3)
	require.NoError(t, idx.Add([]float32{1, 0, 0}))
	require.NoError(t, idx.Add([]float32{0, 1, 0}))

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, idx.Dim(), loaded.Dim())
	assert.Equal(t, idx.Len(), loaded.Len())

	wantPos, wantScores := idx.Search([]float32{0, 1, 0}, 2)
	gotPos, gotScores := loaded.Search([]float32{0, 1, 0}, 2)
	assert.Equal(t, wantPos, gotPos)
	assert.Equal(t, wantScores, gotScores)
}
