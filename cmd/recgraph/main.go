// Package main provides the recgraph CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
	"github.com/vidora/recgraph/internal/relational"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath string
	logMode    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recgraph",
	Short: "Graph-based video recommendation engine",
	Long: `recgraph mirrors relational entities into a graph store, trains a
heterogeneous graph model on the interaction graph, and serves
personalized video recommendations from the resulting embeddings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// A missing .env is fine; explicit environment wins either way.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.toml", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "dev", "Logger mode: dev or prod")
	rootCmd.Version = Version
}

// withEngine wires up config, logging, the graph driver and the
// relational source, runs fn, and tears everything down.
func withEngine(fn func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	d, err := driver.NewNeo4jDriver(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, log)
	if err != nil {
		return fmt.Errorf("failed to connect to graph store: %w", err)
	}

	src, err := relational.OpenSQLite(cfg.Relational.DSN)
	if err != nil {
		_ = d.Close(context.Background())
		return fmt.Errorf("failed to open relational source: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := engine.New(d, src, cfg, log)
	if err := e.Init(ctx); err != nil {
		_ = e.Close(context.Background())
		return err
	}
	defer func() {
		if err := e.Close(context.Background()); err != nil {
			log.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	return fn(ctx, e, log, cfg)
}
