package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidora/recgraph/internal/config"
	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
	"github.com/vidora/recgraph/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recommendation HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *engine.Engine, log *logger.Logger, cfg *config.Config) error {
		// Warm up in the background: retrain if stale, or rebuild the
		// index from stored embeddings. Requests served meanwhile fall
		// back to popularity.
		go func() {
			if err := e.EnsureTrained(ctx); err != nil {
				log.Warn("startup warm-up failed", "error", err)
			}
		}()

		srv := server.New(e, log)
		httpSrv := &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: srv.SetupRouter(),
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("http server listening", "addr", httpSrv.Addr)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info("http server stopped")
		return nil
	})
}
