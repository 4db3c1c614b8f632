package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
)

func init() {
	rootCmd.AddCommand(rebuildIndexCmd)
}

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the vector index from stored embeddings",
	Long: `Rebuild the vector index from the embeddings already stored on video
nodes, without retraining. Use this after restoring the graph store or
if the index artifact was lost.`,
	RunE: runRebuildIndex,
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error {
		return e.RebuildIndex(ctx)
	})
}
