package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/shohin/internal/config"
)

// Footprint is the local disk space taken by the document store and the keyword index.
type Footprint struct {
	Database int64 `json:"database_bytes"`
	Index    int64 `json:"index_bytes"`
}

// Total returns the combined size.
func (f Footprint) Total() int64 {
	return f.Database + f.Index
}

// UsesLocalDatabase reports whether documents live in the SQLite file. The mongo
// driver without a URI falls back to SQLite, so it counts as local.
func UsesLocalDatabase(cfg config.StorageConfig) bool {
	return cfg.Driver != config.DriverMongo || cfg.MongoURI == ""
}

// LocalFootprint measures the SQLite database (with its -wal and -shm files) and
// the index directory. A remote store and an in-memory index count as zero.
func LocalFootprint(cfg config.StorageConfig) (Footprint, error) {
	var fp Footprint
	if UsesLocalDatabase(cfg) && cfg.DatabasePath != "" {
		for _, p := range []string{cfg.DatabasePath, cfg.DatabasePath + "-wal", cfg.DatabasePath + "-shm"} {
			n, err := pathSize(p)
			if err != nil {
				return Footprint{}, err
			}
			fp.Database += n
		}
	}
	if cfg.BleveIndexPath != "" {
		n, err := pathSize(cfg.BleveIndexPath)
		if err != nil {
			return Footprint{}, err
		}
		fp.Index = n
	}
	return fp, nil
}

// pathSize sums the regular files under p. A missing path is 0.
func pathSize(p string) (int64, error) {
	var total int64
	err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
