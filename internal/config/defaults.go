package config

import "time"

// DefaultPath is the config file location used when --config is not given.
const DefaultPath = "/usr/local/etc/shohin/config.yaml"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Reader.Endpoint == "" {
		cfg.Reader.Endpoint = "https://r.jina.ai/"
	}
	if cfg.Reader.Timeout == 0 {
		cfg.Reader.Timeout = 30 * time.Second
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxContentChars == 0 {
		cfg.LLM.MaxContentChars = 100000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shohin/data/db/products.db"
	}
	// With a mongo store an empty index path keeps the index in memory.
	if cfg.Storage.BleveIndexPath == "" && cfg.Storage.Driver != DriverMongo {
		cfg.Storage.BleveIndexPath = "/usr/local/var/shohin/data/indices/bleve"
	}
	if cfg.Storage.MongoDatabase == "" {
		cfg.Storage.MongoDatabase = "product_scraper"
	}
	if cfg.Storage.MongoCollection == "" {
		cfg.Storage.MongoCollection = "products"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".csv", ".xlsx", ".txt"}
	}
	if cfg.Watch.OutputDir == "" {
		cfg.Watch.OutputDir = "/usr/local/var/shohin/data/output"
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
