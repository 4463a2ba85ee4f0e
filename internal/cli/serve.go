package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/shohin/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve exposes stored products, keyword search, status, Prometheus metrics, and
on-demand scraping over HTTP. When watch.directories is set, the inbox watcher
runs alongside the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			logger, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(ctx, cfg, logger, a.errOut)
			if err != nil {
				return err
			}
			defer components.Close()

			opts := []server.Option{server.WithMetrics(components.Metrics)}
			if p, err := requireScraper(cfg, components); err == nil {
				opts = append(opts, server.WithScraper(p))
				if len(cfg.Watch.Directories) > 0 {
					w := newInboxWatcher(cfg, p, logger)
					if err := w.Start(ctx); err != nil {
						return fmt.Errorf("failed to start watcher: %w", err)
					}
					defer w.Stop()
					go w.SyncExisting()
				}
			} else {
				logger.Warn("scraping disabled", zap.Error(err))
			}

			srv := server.NewServer(components.Store, components.Engine, cfg, logger, opts...)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}
			logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default: server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: server.port)")
	return cmd
}
