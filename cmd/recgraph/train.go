package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
)

var (
	trainEpochs    int
	trainHiddenDim int
	trainForce     bool
	trainSyncFirst bool
)

func init() {
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "Training epochs (0 uses the configured default)")
	trainCmd.Flags().IntVar(&trainHiddenDim, "hidden-dim", 0, "Embedding dimension (0 uses the configured default)")
	trainCmd.Flags().BoolVar(&trainForce, "force", false, "Discard the existing model and train from scratch")
	trainCmd.Flags().BoolVar(&trainSyncFirst, "sync-first", false, "Run a full sync before training")
	rootCmd.AddCommand(trainCmd)
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the graph model and rebuild the vector index",
	Long: `Load the graph into memory, train the heterogeneous graph model on
watch interactions, write the resulting embeddings back to the store,
rebuild the vector index and persist all artifacts.`,
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error {
		if trainSyncFirst {
			if err := e.BulkSync(ctx); err != nil {
				return err
			}
		}
		return e.Train(ctx, engine.TrainOptions{
			Epochs:    trainEpochs,
			HiddenDim: trainHiddenDim,
			Force:     trainForce,
		})
	})
}
