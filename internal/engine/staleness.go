package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/graph"
)

// NeedsTraining reports whether the current model should be retrained:
// no model at all, a model older than the configured maximum age, or a
// graph that has grown past the configured factor of what the model was
// trained on (users or videos).
func (e *Engine) NeedsTraining(ctx context.Context) (bool, error) {
	e.mu.RLock()
	model := e.model
	meta := e.meta
	e.mu.RUnlock()

	if model == nil {
		return true, nil
	}

	userCount, err := e.countNodes(ctx, graph.NodeUser)
	if err != nil {
		return false, err
	}
	videoCount, err := e.countNodes(ctx, graph.NodeVideo)
	if err != nil {
		return false, err
	}

	return isStale(meta, time.Now(), staleThresholds{
		maxAge:       time.Duration(e.cfg.Staleness.MaxAgeDays) * 24 * time.Hour,
		growthFactor: e.cfg.Staleness.GrowthFactor,
		userCount:    userCount,
		videoCount:   videoCount,
	}), nil
}

type staleThresholds struct {
	maxAge       time.Duration
	growthFactor float64
	userCount    int
	videoCount   int
}

// isStale holds the pure staleness rule so the boundaries are testable
// without a store.
func isStale(meta Metadata, now time.Time, t staleThresholds) bool {
	if now.Sub(meta.LastTrained) > t.maxAge {
		return true
	}
	if grown(t.userCount, meta.MappedCount(graph.NodeUser), t.growthFactor) {
		return true
	}
	if grown(t.videoCount, meta.MappedCount(graph.NodeVideo), t.growthFactor) {
		return true
	}
	return false
}

// grown reports whether current exceeds factor times mapped. A model
// trained on an empty graph is stale as soon as any node of the type
// exists.
func grown(current, mapped int, factor float64) bool {
	if mapped == 0 {
		return current > 0
	}
	return float64(current) > factor*float64(mapped)
}

func (e *Engine) countNodes(ctx context.Context, t graph.NodeType) (int, error) {
	result, err := e.driver.ExecuteQuery(ctx, driver.CountNodesQuery(t.Label()), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s nodes: %w", t, err)
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	return int(recordInt(result.Records[0], "count")), nil
}
