package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/docid"
	"github.com/hyperjump/shohin/internal/extract"
	"github.com/hyperjump/shohin/internal/fetch"
	"github.com/hyperjump/shohin/internal/keyword"
	"github.com/hyperjump/shohin/internal/metrics"
	"github.com/hyperjump/shohin/internal/persist"
	"github.com/hyperjump/shohin/internal/pipeline"
	"github.com/hyperjump/shohin/internal/search"
	"github.com/hyperjump/shohin/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Store    storage.Store
	Index    keyword.Index
	Engine   *search.Engine
	Writer   *persist.Writer
	Metrics  *metrics.Metrics
	Pipeline *pipeline.Pipeline // nil unless a reader key is configured
}

// Close releases the store and the index.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeComponents builds every service from cfg. The pipeline is only
// built when a reader key is present; commands that scrape check for it with
// cfg.ValidateScrape first. progress receives per-URL lines.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, progress io.Writer) (*Components, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	index, err := openIndex(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	m := metrics.New()
	writer := persist.NewWriter(store,
		persist.WithIndex(index),
		persist.WithIDFunc(docid.New(cfg.Identity.NormalizeURLs)),
		persist.WithLogger(logger),
	)
	c := &Components{
		Store:   store,
		Index:   index,
		Engine:  search.NewEngine(store, index, search.WithLogger(logger)),
		Writer:  writer,
		Metrics: m,
	}
	if n, err := store.Count(ctx); err == nil {
		m.SetDocuments(n)
	}
	if cfg.Storage.BleveIndexPath == "" {
		n, err := c.Engine.Reindex(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to build in-memory index: %w", err)
		}
		logger.Info("in-memory keyword index built", zap.Int("documents", n))
	}

	if cfg.Reader.APIKey == "" {
		return c, nil
	}
	fetcher, err := fetch.New(fetch.Options{
		Endpoint: cfg.Reader.Endpoint,
		APIKey:   cfg.Reader.APIKey,
		Timeout:  cfg.Reader.Timeout,
	}, fetch.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	var chat extract.ChatCompleter
	if cfg.LLM.APIKey != "" {
		chat = extract.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	} else {
		logger.Warn("no language model key (llm.api_key or OPENAI_API_KEY); every extraction will fail")
	}
	extractor := extract.New(chat,
		extract.WithModel(cfg.LLM.Model),
		extract.WithTemperature(cfg.LLM.Temperature),
		extract.WithMaxContentChars(cfg.LLM.MaxContentChars),
		extract.WithLogger(logger),
	)

	c.Pipeline = pipeline.New(fetcher, extractor, writer,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithProgress(progress),
	)
	return c, nil
}

func openIndex(cfg *config.Config) (*keyword.BleveIndex, error) {
	if cfg.Storage.BleveIndexPath == "" {
		return keyword.NewMemoryIndex()
	}
	return keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverMongo {
		if cfg.Storage.MongoURI != "" {
			store, err := storage.NewMongoStore(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection)
			if err != nil {
				return nil, err
			}
			return store, nil
		}
		logger.Warn("storage driver is mongo but no URI is set (storage.mongo_uri or MONGODB_URI); using SQLite",
			zap.String("path", cfg.Storage.DatabasePath))
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	return store, nil
}
