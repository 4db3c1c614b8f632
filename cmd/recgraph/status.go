package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model and index state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error {
		status, err := e.Status(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	})
}
