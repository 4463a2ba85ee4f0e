// Package cli implements the shohin commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X github.com/hyperjump/shohin/internal/cli.Version=...".
var Version = "dev"

// fallbackConfigPath is tried when the default config file does not exist.
const fallbackConfigPath = "config.yaml"

// app holds the persistent flags shared by every command.
type app struct {
	configPath string
	envFile    string
	debug      bool
	out        io.Writer
	errOut     io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{out: os.Stdout, errOut: os.Stderr}
	root := &cobra.Command{
		Use:   "shohin",
		Short: "shohin turns product page URLs into structured product records",
		Long: `shohin renders product pages through a reader service, extracts a structured
product record with a language model, and stores it under the page URL.

Usage:
  shohin scrape <url> [--output products.json]
  shohin batch <urls.csv|urls.xlsx|urls.txt> [--output products.json]`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "config file path")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with credentials (missing file is ignored)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newScrapeCommand(a),
		newBatchCommand(a),
		newGetCommand(a),
		newListCommand(a),
		newSearchCommand(a),
		newStatusCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
		newReindexCommand(a),
		newImportCommand(a),
		newInitCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx and exits non-zero on error.
func Execute(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file, the config file, and the environment.
// A missing file at the default path falls back to ./config.yaml, then to defaults.
func (a *app) loadConfig() (*config.Config, error) {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", a.envFile, err)
	}

	var cfg *config.Config
	var err error
	if a.configPath != config.DefaultPath {
		cfg, err = config.Load(a.configPath)
	} else {
		var found bool
		cfg, found, err = config.LoadOrDefault(config.DefaultPath)
		if err == nil && !found {
			cfg, _, err = config.LoadOrDefault(fallbackConfigPath)
		}
	}
	if err != nil {
		return nil, err
	}

	config.ApplyEnv(cfg)
	if a.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "shohin %s\n", Version)
		},
	}
}
