package engine

import (
	"math/rand"
	"testing"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/gnn"
	"github.com/vidora/recgraph/internal/logger"
)

// newTestEngine wires an engine against the mocks with a throwaway
// artifact directory and a small, fast model configuration.
func newTestEngine(t *testing.T, d *mockDriver, src *mockSource) *Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Model.HiddenDim = 8
	cfg.Model.NumLayers = 2
	cfg.Model.FeatureDim = 4
	cfg.Training.Epochs = 2
	cfg.Training.Seed = 1

	if src == nil {
		src = &mockSource{}
	}
	return New(d, src, cfg, logger.Nop())
}

// tinyTestModel builds a model matching the engine's test configuration.
func tinyTestModel(e *Engine) *gnn.Model {
	return gnn.NewModel(gnn.Config{
		HiddenDim:  e.cfg.Model.HiddenDim,
		NumLayers:  e.cfg.Model.NumLayers,
		FeatureDim: e.cfg.Model.FeatureDim,
	}, rand.New(rand.NewSource(1)))
}

// waitForTraining blocks until any in-flight background run finishes, so
// tests do not race artifact writes against temp dir cleanup.
func waitForTraining(e *Engine) {
	e.trainMu.Lock()
	run := e.run
	e.trainMu.Unlock()
	if run != nil {
		<-run.done
	}
}
