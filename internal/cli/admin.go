package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/export"
	"github.com/spf13/cobra"
)

func newInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Long: `Init writes the default configuration to the --config path. Credentials are
left empty; set them in the file, in .env, or in JINA_API_KEY and OPENAI_API_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote default config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>",
		Short: "Store the records of an exported JSON file",
		Long: `Import reads a JSON array written by scrape, batch, or watch and upserts each
record under its metadata.source_url, as if it had just been scraped. Records
without a source URL are skipped.

Examples:
  shohin import extracted_products.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			records, err := export.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withComponents(ctx, func(_ *config.Config, c *Components) error {
				var stored, skipped, failed int
				for i, rec := range records {
					if rec == nil || rec.Metadata.SourceURL == "" {
						fmt.Fprintf(a.errOut, "  - record %d has no source_url, skipped\n", i+1)
						skipped++
						continue
					}
					if _, err := c.Writer.Upsert(ctx, rec, rec.Metadata.SourceURL); err != nil {
						fmt.Fprintf(a.errOut, "  ✗ %v\n", err)
						failed++
						continue
					}
					stored++
				}
				fmt.Fprintf(a.out, "Imported %d record(s): %d skipped, %d failed\n", stored, skipped, failed)
				return nil
			})
		},
	}
}
