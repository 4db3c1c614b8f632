package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
)

var (
	syncCategoriesOnly   bool
	syncSimilaritiesOnly bool
)

func init() {
	syncCmd.Flags().BoolVar(&syncCategoriesOnly, "categories-only", false, "Sync only parent categories and categories")
	syncCmd.Flags().BoolVar(&syncSimilaritiesOnly, "similarities-only", false, "Recompute video similarity edges only")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror relational data into the graph store",
	Long: `Mirror users, videos, categories and interaction events from the
relational source into the graph store, then recompute video
similarity edges. All writes are idempotent upserts.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error {
		switch {
		case syncCategoriesOnly:
			return e.SyncCategories(ctx)
		case syncSimilaritiesOnly:
			created, err := e.ComputeVideoSimilarities(ctx)
			if err != nil {
				return err
			}
			log.Info("similarity edges recomputed", "created", created)
			return nil
		default:
			return e.BulkSync(ctx)
		}
	})
}
