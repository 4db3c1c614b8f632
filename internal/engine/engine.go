// Package engine is the recommendation core: it owns the graph store
// connection, the trained model, the active vector index, and the
// persisted artifacts, and serves sync, training and retrieval.
//
// There is no global instance. Construct one Engine at process start,
// call Init to load persisted artifacts (or start cold), and Close at
// shutdown.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/gnn"
	"github.com/vidora/recgraph/internal/graph"
	"github.com/vidora/recgraph/internal/logger"
	"github.com/vidora/recgraph/internal/relational"
	"github.com/vidora/recgraph/internal/vecindex"
)

// Metadata describes the model the engine currently holds. It is valid
// only paired with the embeddings produced by the same training run.
type Metadata struct {
	HiddenDim    int                               `json:"hidden_dim"`
	NodeMappings map[graph.NodeType]map[string]int `json:"node_mappings"`
	LastTrained  time.Time                         `json:"last_trained"`
	TotalEpochs  int                               `json:"total_epochs"`
	RunID        string                            `json:"run_id"`
}

// MappedCount returns how many nodes of a type the model was trained on.
func (m Metadata) MappedCount(t graph.NodeType) int {
	return len(m.NodeMappings[t])
}

type Engine struct {
	driver driver.GraphDriver
	source relational.Source
	cfg    *config.Config
	log    *logger.Logger

	// mu guards the model, metadata, index and id list. The index is
	// replaced wholesale under the write lock so searches observe either
	// the old or the fully-rebuilt index, never a partial one.
	mu       sync.RWMutex
	model    *gnn.Model
	meta     Metadata
	index    *vecindex.Flat
	videoIDs []string

	// trainMu guards the single-flight training run.
	trainMu sync.Mutex
	run     *trainRun
}

func New(d driver.GraphDriver, src relational.Source, cfg *config.Config, log *logger.Logger) *Engine {
	return &Engine{
		driver: d,
		source: src,
		cfg:    cfg,
		log:    log,
	}
}

// Init loads persisted artifacts if they exist. A missing or unreadable
// artifact set leaves the engine untrained; the first recommendation
// request will lazily enqueue training.
func (e *Engine) Init(ctx context.Context) error {
	model, meta, err := e.loadModelArtifacts()
	if err != nil {
		e.log.Warn("no usable model artifacts, starting untrained", "error", err)
	} else if model != nil {
		e.mu.Lock()
		e.model = model
		e.meta = meta
		e.mu.Unlock()
		e.log.Info("loaded model",
			"hidden_dim", meta.HiddenDim,
			"total_epochs", meta.TotalEpochs,
			"last_trained", meta.LastTrained,
			"run_id", meta.RunID)
	}

	index, ids, err := e.loadIndexArtifacts()
	if err != nil {
		e.log.Warn("no usable index artifacts, index starts empty", "error", err)
	} else if index != nil {
		e.mu.Lock()
		e.index = index
		e.videoIDs = ids
		e.mu.Unlock()
		e.log.Info("loaded vector index", "size", index.Len(), "dim", index.Dim())
	}

	return nil
}

// Close releases the graph store connection and the relational source.
func (e *Engine) Close(ctx context.Context) error {
	var firstErr error
	if e.source != nil {
		if err := e.source.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close relational source: %w", err)
		}
	}
	if err := e.driver.Close(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close graph driver: %w", err)
	}
	return firstErr
}

// InitializeSchema sets up graph store constraints and indexes.
func (e *Engine) InitializeSchema(ctx context.Context) error {
	return e.driver.BuildSchema(ctx)
}

// Status reports the engine's model and index state.
type Status struct {
	ModelLoaded   bool      `json:"model_loaded"`
	HiddenDim     int       `json:"hidden_dim,omitempty"`
	TotalEpochs   int       `json:"total_epochs,omitempty"`
	LastTrained   time.Time `json:"last_trained,omitempty"`
	RunID         string    `json:"run_id,omitempty"`
	MappedUsers   int       `json:"mapped_users"`
	MappedVideos  int       `json:"mapped_videos"`
	IndexSize     int       `json:"index_size"`
	Training      bool      `json:"training"`
	NeedsTraining bool      `json:"needs_training"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.RLock()
	s := Status{
		ModelLoaded:  e.model != nil,
		MappedUsers:  e.meta.MappedCount(graph.NodeUser),
		MappedVideos: e.meta.MappedCount(graph.NodeVideo),
	}
	if e.model != nil {
		s.HiddenDim = e.meta.HiddenDim
		s.TotalEpochs = e.meta.TotalEpochs
		s.LastTrained = e.meta.LastTrained
		s.RunID = e.meta.RunID
	}
	if e.index != nil {
		s.IndexSize = e.index.Len()
	}
	e.mu.RUnlock()

	e.trainMu.Lock()
	s.Training = e.run != nil
	e.trainMu.Unlock()

	needs, err := e.NeedsTraining(ctx)
	if err != nil {
		return s, err
	}
	s.NeedsTraining = needs
	return s, nil
}
