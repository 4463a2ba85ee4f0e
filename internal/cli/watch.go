package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/pipeline"
	"github.com/hyperjump/shohin/internal/urllist"
	"github.com/hyperjump/shohin/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		outputDir string
		noSync    bool
	)
	cmd := &cobra.Command{
		Use:   "watch [directory...]",
		Short: "Process URL list files dropped into inbox directories",
		Long: `Watch processes every new or changed URL list (.csv, .xlsx, .txt) in the given
directories, or in watch.directories from the config, as a batch. The records of
each list are exported to <output-dir>/<list name>.json.

Examples:
  shohin watch ~/inbox
  shohin watch --output-dir ~/exports ~/inbox`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Watch.Directories = absPaths(args)
			}
			if outputDir != "" {
				cfg.Watch.OutputDir = outputDir
			}
			if len(cfg.Watch.Directories) == 0 {
				return errors.New("no directories to watch (pass them as arguments or set watch.directories)")
			}
			logger, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(ctx, cfg, logger, a.out)
			if err != nil {
				return err
			}
			defer components.Close()
			p, err := requireScraper(cfg, components)
			if err != nil {
				return err
			}

			w := newInboxWatcher(cfg, p, logger)
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()
			if !noSync {
				w.SyncExisting()
			}
			fmt.Fprintf(a.out, "Watching %s (exports in %s). Press Ctrl+C to stop.\n",
				strings.Join(w.Directories(), ", "), cfg.Watch.OutputDir)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for exported JSON files (default: watch.output_dir)")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip lists already present when the watch starts")
	return cmd
}

func newInboxWatcher(cfg *config.Config, p *pipeline.Pipeline, logger *zap.Logger) *watcher.Watcher {
	exts := readableExtensions(cfg.Watch.Extensions, logger)
	handle := func(ctx context.Context, path string) {
		if _, err := processList(ctx, p, path, cfg.Watch.OutputDir, logger); err != nil {
			logger.Error("list failed", zap.String("path", path), zap.Error(err))
		}
	}
	return watcher.New(cfg.Watch.Directories, exts, cfg.Watch.RecursiveOrDefault(), handle, watcher.WithLogger(logger))
}

// readableExtensions keeps the configured extensions that urllist can read.
// An empty result falls back to every readable extension.
func readableExtensions(configured []string, logger *zap.Logger) []string {
	var exts []string
	for _, ext := range configured {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !urllist.Supported("list" + ext) {
			logger.Warn("ignoring watch extension that is not a URL list format", zap.String("extension", ext))
			continue
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		return urllist.Extensions
	}
	return exts
}

// processList runs every URL in the list at path and exports the records to
// outputDir/<list name>.json. It returns the export path.
func processList(ctx context.Context, p *pipeline.Pipeline, path, outputDir string, logger *zap.Logger) (string, error) {
	urls, err := urllist.Read(path)
	if err != nil {
		return "", err
	}
	base := filepath.Base(path)
	output := filepath.Join(outputDir, strings.TrimSuffix(base, filepath.Ext(base))+".json")
	if _, _, err := runAndExport(ctx, p, urls, output, true, logger); err != nil {
		return "", err
	}
	return output, nil
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}
