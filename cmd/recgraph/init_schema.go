package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
)

func init() {
	rootCmd.AddCommand(initSchemaCmd)
}

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create graph store constraints and indexes",
	Long: `Create the uniqueness constraints and lookup indexes the engine
relies on. Safe to run repeatedly; existing constraints are kept.`,
	RunE: runInitSchema,
}

func runInitSchema(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error {
		if err := e.InitializeSchema(ctx); err != nil {
			return err
		}
		log.Info("schema initialized")
		return nil
	})
}
