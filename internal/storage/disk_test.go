package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSized(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0644))
}

func TestLocalFootprint(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "products.db")
	index := filepath.Join(dir, "bleve")
	writeSized(t, db, 100)
	writeSized(t, db+"-wal", 20)
	writeSized(t, filepath.Join(index, "store", "root.bolt"), 7)
	writeSized(t, filepath.Join(index, "index_meta.json"), 3)

	tests := []struct {
		name string
		cfg  config.StorageConfig
		want Footprint
	}{
		{"sqlite", config.StorageConfig{Driver: config.DriverSQLite, DatabasePath: db, BleveIndexPath: index}, Footprint{Database: 120, Index: 10}},
		{"mongo ignores stale sqlite file", config.StorageConfig{Driver: config.DriverMongo, MongoURI: "mongodb://x", DatabasePath: db, BleveIndexPath: index}, Footprint{Index: 10}},
		{"mongo without uri falls back to sqlite", config.StorageConfig{Driver: config.DriverMongo, DatabasePath: db}, Footprint{Database: 120}},
		{"in-memory index", config.StorageConfig{Driver: config.DriverMongo, MongoURI: "mongodb://x"}, Footprint{}},
		{"missing paths", config.StorageConfig{Driver: config.DriverSQLite, DatabasePath: filepath.Join(dir, "none.db"), BleveIndexPath: filepath.Join(dir, "none")}, Footprint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalFootprint(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Database+tt.want.Index, got.Total())
		})
	}
}
