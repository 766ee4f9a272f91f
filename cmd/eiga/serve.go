package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/eiga/internal/model"
	"github.com/hyperjump/eiga/internal/server"
	"github.com/hyperjump/eiga/internal/watcher"
	"github.com/hyperjump/eiga/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve recommendations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := o.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			debugMode := cfg.Debug || o.debug
			logger, err := utils.NewLogger(debugMode)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()
			logger.Info("config loaded", zap.String("config_path", path), zap.Bool("debug", debugMode))

			ctx := cmd.Context()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			holder := model.NewHolder()
			svc, err := newService(cfg, holder, logger)
			if err != nil {
				return err
			}
			mgr := components.newManager(cfg, holder, logger, model.OnSwap(func(*model.Snapshot) { svc.Invalidate() }))
			if _, err := mgr.Load(ctx); err != nil {
				return fmt.Errorf("failed to load model %s: %w", mgr.URI(), err)
			}

			if cfg.Watch.EnabledOrDefault() {
				w := watcher.NewWatcher(
					[]string{cfg.Storage.RegistryPath},
					func() {
						changed, err := mgr.Refresh(ctx)
						if err != nil {
							logger.Warn("model refresh failed", zap.String("model", mgr.URI()), zap.Error(err))
							return
						}
						if changed {
							logger.Info("model refreshed", zap.String("model", mgr.URI()))
						}
					},
					watcher.WithDebounce(cfg.Watch.Debounce),
					watcher.WithLogger(logger),
				)
				if err := w.Start(ctx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer w.Stop()
			}

			srv := server.NewServer(svc, mgr, &cfg.Server, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}
