package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidora/recgraph/internal/graph"
	"github.com/vidora/recgraph/internal/vecindex"
)

func TestModelArtifactRoundTrip(t *testing.T) {
	e := newTestEngine(t, &mockDriver{}, nil)
	model := tinyTestModel(e)
	meta := Metadata{
		HiddenDim: e.cfg.Model.HiddenDim,
		NodeMappings: map[graph.NodeType]map[string]int{
			graph.NodeUser:  {"u1": 0, "u2": 1},
			graph.NodeVideo: {"v1": 0},
		},
		LastTrained: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		TotalEpochs: 30,
		RunID:       "run-1",
	}

	require.NoError(t, e.saveModelArtifacts(model, meta))

	loaded, loadedMeta, err := e.loadModelArtifacts()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, model.Cfg, loaded.Cfg)
	assert.Equal(t, meta.HiddenDim, loadedMeta.HiddenDim)
	assert.Equal(t, meta.TotalEpochs, loadedMeta.TotalEpochs)
	assert.Equal(t, meta.RunID, loadedMeta.RunID)
	assert.True(t, meta.LastTrained.Equal(loadedMeta.LastTrained))
	assert.Equal(t, 2, loadedMeta.MappedCount(graph.NodeUser))
	assert.Equal(t, 1, loadedMeta.MappedCount(graph.NodeVideo))
}

func TestIndexArtifactRoundTrip(t *testing.T) {
	e := newTestEngine(t, &mockDriver{}, nil)

	idx := vecindex.New(2)
	require.NoError(t, idx.Add([]float32{1, 0}))
	require.NoError(t, idx.Add([]float32{0, 1}))
	require.NoError(t, e.saveIndexArtifacts(idx, []string{"v1", "v2"}))

	loaded, ids, err := e.loadIndexArtifacts()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, []string{"v1", "v2"}, ids)
	assert.Equal(t, 2, loaded.Len())

	wantPos, _ := idx.Search([]float32{0, 1}, 2)
	gotPos, _ := loaded.Search([]float32{0, 1}, 2)
	assert.Equal(t, wantPos, gotPos)
}

func TestLoadArtifactsMissingIsNotAnError(t *testing.T) {
	e := newTestEngine(t, &mockDriver{}, nil)

	model, meta, err := e.loadModelArtifacts()
	require.NoError(t, err)
	assert.Nil(t, model)
	assert.Zero(t, meta.TotalEpochs)

	idx, ids, err := e.loadIndexArtifacts()
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Nil(t, ids)
}

func TestLoadIndexArtifactsRejectsIDMismatch(t *testing.T) {
	e := newTestEngine(t, &mockDriver{}, nil)

	idx := vecindex.New(2)
	require.NoError(t, idx.Add([]float32{1, 0}))
	require.NoError(t, idx.Add([]float32{0, 1}))
	require.NoError(t, e.saveIndexArtifacts(idx, []string{"v1", "v2"}))

	// Corrupt the id list so it no longer lines up with the index.
	require.NoError(t, os.WriteFile(e.artifactPath(videoIDsFile), []byte(`["v1"]`), 0o644))

	_, _, err := e.loadIndexArtifacts()
	assert.Error(t, err)
}

func TestInitToleratesUnreadableArtifacts(t *testing.T) {
	e := newTestEngine(t, &mockDriver{}, nil)
	require.NoError(t, os.WriteFile(e.artifactPath(metadataFile), []byte("not json"), 0o644))

	require.NoError(t, e.Init(context.Background()))
	assert.Nil(t, e.model, "unreadable artifacts leave the engine untrained")
}
