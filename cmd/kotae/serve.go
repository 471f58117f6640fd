package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/watcher"
)

// NewServeCmd runs the HTTP API.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP API. Datasets stored in the database are re-indexed on startup.
With watch.enabled, source files of path-backed datasets are reloaded when they change.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, resolvedConfigPath, logger, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
		zap.String("embedding_backend", cfg.Embedding.Backend),
		zap.String("index_type", cfg.Vector.IndexType),
	)

	comps, err := initializeComponents(cfg, logger, cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx := cmd.Context()
	if n, err := comps.Sessions.Restore(ctx); err != nil {
		logger.Warn("some datasets could not be restored", zap.Int("restored", n), zap.Error(err))
	}

	if cfg.Watch.Enabled {
		w, err := startWatcher(ctx, cfg.Watch.Debounce, comps.Sessions, logger)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.NewServer(comps.Sessions, comps.Storage, comps.Embedder, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// startWatcher watches the source file of every path-backed dataset, including ones created
// while serving, and rebuilds the datasets when a file changes.
func startWatcher(ctx context.Context, debounce time.Duration, mgr *session.Manager, logger *zap.Logger) (*watcher.Watcher, error) {
	w := watcher.NewWatcher(func(path string) {
		if err := mgr.ReloadPath(ctx, path); err != nil {
			logger.Warn("reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("dataset source reloaded", zap.String("path", path))
	}, watcher.WithDebounce(debounce), watcher.WithLogger(logger))

	// mu orders the hooks so a create racing the last delete of a path keeps it watched.
	var mu sync.Mutex
	mgr.OnCreate(func(ds models.Dataset) {
		if ds.SourcePath == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := w.Add(ds.SourcePath); err != nil {
			logger.Warn("cannot watch file", zap.String("path", ds.SourcePath), zap.Error(err))
		}
	})
	mgr.OnDelete(func(ds models.Dataset) {
		if ds.SourcePath == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if slices.Contains(mgr.SourcePaths(), ds.SourcePath) {
			return
		}
		if err := w.Remove(ds.SourcePath); err != nil {
			logger.Warn("cannot unwatch file", zap.String("path", ds.SourcePath), zap.Error(err))
		}
	})
	for _, p := range mgr.SourcePaths() {
		if err := w.Add(p); err != nil {
			logger.Warn("cannot watch file", zap.String("path", p), zap.Error(err))
		}
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logger.Info("watching dataset sources", zap.Strings("files", w.Files()))
	return w, nil
}
