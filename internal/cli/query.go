package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/server"
	"github.com/hyperjump/shohin/internal/storage"
	"github.com/spf13/cobra"
)

const serverFlagUsage = "server URL, e.g. http://localhost:8080 (empty = open local storage; use while serve holds the index)"

// withComponents loads config and components for read-only commands.
func (a *app) withComponents(ctx context.Context, fn func(cfg *config.Config, c *Components) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
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
	return fn(cfg, components)
}

func newAPIClient(serverURL string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(serverURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
}

// apiGet decodes a GET response into out; non-2xx responses become errors.
func apiGet(ctx context.Context, client *resty.Client, path string, query map[string]string, out any) error {
	resp, err := client.R().SetContext(ctx).SetQueryParams(query).SetResult(out).Get(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func newGetCommand(a *app) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Print a stored product record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if serverURL != "" {
				var doc models.StoredDocument
				if err := apiGet(ctx, newAPIClient(serverURL), "/api/v1/products/"+id, nil, &doc); err != nil {
					return err
				}
				return writeJSON(a.out, doc)
			}
			return a.withComponents(ctx, func(_ *config.Config, c *Components) error {
				doc, err := c.Store.Get(ctx, id)
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("document %s not found", id)
				}
				if err != nil {
					return err
				}
				return writeJSON(a.out, doc)
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", serverFlagUsage)
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		serverURL string
		offset    int
		limit     int
		format    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored products, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			if offset < 0 || limit <= 0 {
				return errors.New("offset must be >= 0 and limit > 0")
			}
			if serverURL != "" {
				var page struct {
					Products []*models.StoredDocument `json:"products"`
					Total    int64                    `json:"total"`
				}
				q := map[string]string{"offset": fmt.Sprint(offset), "limit": fmt.Sprint(limit)}
				if err := apiGet(ctx, newAPIClient(serverURL), "/api/v1/products", q, &page); err != nil {
					return err
				}
				return WriteDocuments(a.out, page.Products, page.Total, f)
			}
			return a.withComponents(ctx, func(_ *config.Config, c *Components) error {
				docs, err := c.Store.List(ctx, offset, limit)
				if err != nil {
					return err
				}
				total, err := c.Store.Count(ctx)
				if err != nil {
					return err
				}
				return WriteDocuments(a.out, docs, total, f)
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", serverFlagUsage)
	cmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of documents to list")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newSearchCommand(a *app) *cobra.Command {
	var (
		serverURL string
		query     models.SearchQuery
		format    string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored products by keyword",
		Long: `Search matches titles, brands, descriptions, features, categories, and tags.
Multi-word queries work with or without quotes. When nothing matches exactly, the
search is retried with typo tolerance.

Examples:
  shohin search running shoes
  shohin search --fuzzy snekaers
  shohin search --fuzzy --fuzziness 1 lnen
  shohin search --format json "linen shirt"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			query.Query = buildSearchQuery(args)
			if query.Query == "" {
				return errors.New("query cannot be empty")
			}
			if serverURL != "" {
				var response models.SearchResponse
				resp, err := newAPIClient(serverURL).R().SetContext(ctx).
					SetBody(query).SetResult(&response).Post("/api/v1/search")
				if err != nil {
					return fmt.Errorf("request failed: %w", err)
				}
				if resp.IsError() {
					return fmt.Errorf("server returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
				}
				return WriteSearchResults(a.out, &response, f)
			}
			return a.withComponents(ctx, func(_ *config.Config, c *Components) error {
				response, err := c.Engine.Search(ctx, &query)
				if err != nil {
					return err
				}
				return WriteSearchResults(a.out, response, f)
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", serverFlagUsage)
	cmd.Flags().IntVar(&query.Limit, "limit", 10, "number of results")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "number of results to skip")
	cmd.Flags().BoolVar(&query.Fuzzy, "fuzzy", false, "enable fuzzy matching for typo tolerance")
	cmd.Flags().IntVar(&query.Fuzziness, "fuzziness", 0, "maximum edit distance for fuzzy terms, 1 or 2 (default 2)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newStatusCommand(a *app) *cobra.Command {
	var serverURL, format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show storage and index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			if serverURL != "" {
				var st server.Status
				if err := apiGet(ctx, newAPIClient(serverURL), "/api/v1/status", nil, &st); err != nil {
					return err
				}
				return WriteStatus(a.out, &st, f)
			}
			return a.withComponents(ctx, func(cfg *config.Config, c *Components) error {
				st, err := server.BuildStatus(ctx, c.Store, c.Engine, cfg)
				if err != nil {
					return err
				}
				return WriteStatus(a.out, st, f)
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", serverFlagUsage)
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newReindexCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the keyword index from the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withComponents(ctx, func(_ *config.Config, c *Components) error {
				n, err := c.Engine.Reindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Indexed %d document(s)\n", n)
				return nil
			})
		},
	}
}
