package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/export"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/pipeline"
	"github.com/hyperjump/shohin/internal/urllist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type scrapeFlags struct {
	output string
	format string
	batch  bool
}

func newScrapeCommand(a *app) *cobra.Command {
	var f scrapeFlags
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Extract and store the product record for one URL",
		Long: `Scrape renders one product page, extracts its record, and stores it under the
page URL. With --output the record is also written as a one-element JSON array.

Examples:
  shohin scrape https://shop.example.com/p/123
  shohin scrape https://shop.example.com/p/123 --output product.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScrape(cmd.Context(), []string{strings.TrimSpace(args[0])}, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the extracted record to this JSON file")
	cmd.Flags().StringVar(&f.format, "format", "text", "summary format: text or json")
	return cmd
}

func newBatchCommand(a *app) *cobra.Command {
	f := scrapeFlags{batch: true}
	cmd := &cobra.Command{
		Use:   "batch <url-list>",
		Short: "Extract and store product records for every URL in a list file",
		Long: `Batch reads URLs from a CSV file (first column), an XLSX workbook (first column
of the first sheet), or a text file (one URL per line, # comments), and processes them
one at a time. A failing URL is reported and skipped.

Examples:
  shohin batch urls.csv
  shohin batch urls.xlsx --output extracted_products.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := urllist.Read(args[0])
			if err != nil {
				return err
			}
			return a.runScrape(cmd.Context(), urls, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write extracted records to this JSON file (default: export.path from config)")
	cmd.Flags().StringVar(&f.format, "format", "text", "summary format: text or json")
	return cmd
}

func (a *app) runScrape(ctx context.Context, urls []string, f scrapeFlags) error {
	format, err := parseFormat(f.format)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateScrape(); err != nil {
		return err
	}
	logger, err := a.newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	progress := a.out
	if format == OutputJSON {
		progress = a.errOut
	}
	components, err := initializeComponents(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}
	defer components.Close()

	output := f.output
	if output == "" && f.batch {
		output = cfg.Export.Path
	}
	// A failed single URL leaves an existing output file alone.
	outcomes, written, err := runAndExport(ctx, components.Pipeline, urls, output, f.batch, logger)
	if err != nil {
		return err
	}
	return WriteOutcomes(a.out, outcomes, written, format)
}

// runAndExport runs urls through p and, when output is set, writes every
// extracted record to it. Without keepEmpty nothing is written when no record
// was extracted. It returns the path written, or "".
func runAndExport(ctx context.Context, p *pipeline.Pipeline, urls []string, output string, keepEmpty bool, logger *zap.Logger) ([]models.Outcome, string, error) {
	outcomes := p.Run(ctx, urls)
	if output == "" {
		return outcomes, "", nil
	}
	records := pipeline.Records(outcomes)
	if len(records) == 0 && !keepEmpty {
		logger.Info("nothing extracted, export skipped", zap.String("path", output))
		return outcomes, "", nil
	}
	if err := export.WriteFile(output, records); err != nil {
		return outcomes, "", fmt.Errorf("failed to write %s: %w", output, err)
	}
	logger.Info("records exported", zap.String("path", output), zap.Int("records", len(records)))
	return outcomes, output, nil
}

// requireScraper returns the pipeline or explains why scraping is unavailable.
func requireScraper(cfg *config.Config, c *Components) (*pipeline.Pipeline, error) {
	if err := cfg.ValidateScrape(); err != nil {
		return nil, err
	}
	if c.Pipeline == nil {
		return nil, config.ErrMissingReaderKey
	}
	return c.Pipeline, nil
}
