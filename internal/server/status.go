package server

import (
	"context"
	"fmt"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/storage"
)

// StatusConfig is the configuration subset reported by status.
type StatusConfig struct {
	StorageDriver  string `json:"storage_driver"`
	DatabasePath   string `json:"database_path,omitempty"`
	MongoDatabase  string `json:"mongo_database,omitempty"`
	BleveIndexPath string `json:"bleve_index_path,omitempty"`
	ReaderEndpoint string `json:"reader_endpoint"`
	Model          string `json:"model"`
	NormalizeURLs  bool   `json:"normalize_urls"`
}

// Status is the shape of GET /api/v1/status and of `shohin status`.
type Status struct {
	Documents      int64              `json:"documents"`
	IndexSize      uint64             `json:"index_size"`
	DiskUsageBytes *int64             `json:"disk_usage_bytes,omitempty"`
	Footprint      *storage.Footprint `json:"footprint,omitempty"`
	Config         *StatusConfig      `json:"config,omitempty"`
}

// BuildStatus collects document counts, index size, and local disk usage.
func BuildStatus(ctx context.Context, store storage.Store, engine Searcher, cfg *config.Config) (*Status, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents failed: %w", err)
	}
	st := &Status{Documents: count}
	if engine != nil {
		st.IndexSize = engine.IndexSize()
	}
	if cfg == nil {
		return st, nil
	}

	st.Config = &StatusConfig{
		StorageDriver:  cfg.Storage.Driver,
		BleveIndexPath: cfg.Storage.BleveIndexPath,
		ReaderEndpoint: cfg.Reader.Endpoint,
		Model:          cfg.LLM.Model,
		NormalizeURLs:  cfg.Identity.NormalizeURLs,
	}
	if storage.UsesLocalDatabase(cfg.Storage) {
		st.Config.DatabasePath = cfg.Storage.DatabasePath
	} else {
		st.Config.MongoDatabase = cfg.Storage.MongoDatabase
	}
	if fp, err := storage.LocalFootprint(cfg.Storage); err == nil {
		st.Footprint = &fp
		total := fp.Total()
		st.DiskUsageBytes = &total
	}
	return st, nil
}
