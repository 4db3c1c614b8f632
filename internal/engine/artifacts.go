package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vidora/recgraph/internal/gnn"
	"github.com/vidora/recgraph/internal/vecindex"
)

const (
	modelFile    = "gnn_model.gob"
	metadataFile = "model_metadata.json"
	indexFile    = "vector_index.gob"
	videoIDsFile = "video_ids.json"
)

func (e *Engine) artifactPath(name string) string {
	return filepath.Join(e.cfg.Artifacts.Dir, name)
}

// atomicWrite writes through a temp file in the target directory and
// renames it into place, so a failed write never clobbers a previously
// good artifact.
func atomicWrite(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename artifact into place: %w", err)
	}
	return nil
}

func (e *Engine) saveModelArtifacts(model *gnn.Model, meta Metadata) error {
	if err := atomicWrite(e.artifactPath(modelFile), model.Save); err != nil {
		return fmt.Errorf("failed to persist model weights: %w", err)
	}
	if err := atomicWrite(e.artifactPath(metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return fmt.Errorf("failed to persist model metadata: %w", err)
	}
	return nil
}

func (e *Engine) saveIndexArtifacts(index *vecindex.Flat, videoIDs []string) error {
	if err := atomicWrite(e.artifactPath(indexFile), index.Save); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}
	if err := atomicWrite(e.artifactPath(videoIDsFile), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(videoIDs)
	}); err != nil {
		return fmt.Errorf("failed to persist video id list: %w", err)
	}
	return nil
}

// loadModelArtifacts returns (nil, zero, nil) when the artifacts simply
// do not exist yet; an error only for present-but-unreadable files.
func (e *Engine) loadModelArtifacts() (*gnn.Model, Metadata, error) {
	var meta Metadata

	metaBytes, err := os.ReadFile(e.artifactPath(metadataFile))
	if os.IsNotExist(err) {
		return nil, meta, nil
	}
	if err != nil {
		return nil, meta, fmt.Errorf("failed to read model metadata: %w", err)
	}
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, meta, fmt.Errorf("failed to parse model metadata: %w", err)
	}

	f, err := os.Open(e.artifactPath(modelFile))
	if os.IsNotExist(err) {
		return nil, meta, nil
	}
	if err != nil {
		return nil, meta, fmt.Errorf("failed to open model weights: %w", err)
	}
	defer f.Close()

	model, err := gnn.Load(f)
	if err != nil {
		return nil, meta, err
	}
	return model, meta, nil
}

func (e *Engine) loadIndexArtifacts() (*vecindex.Flat, []string, error) {
	f, err := os.Open(e.artifactPath(indexFile))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	defer f.Close()

	index, err := vecindex.Load(f)
	if err != nil {
		return nil, nil, err
	}

	idBytes, err := os.ReadFile(e.artifactPath(videoIDsFile))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read video id list: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(idBytes, &ids); err != nil {
		return nil, nil, fmt.Errorf("failed to parse video id list: %w", err)
	}

	if len(ids) != index.Len() {
		return nil, nil, fmt.Errorf("video id list length %d does not match index size %d", len(ids), index.Len())
	}
	return index, ids, nil
}
