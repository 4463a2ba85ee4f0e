// Package config provides configuration loading and structs for shohin.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// ErrMissingReaderKey is returned by ValidateScrape when no rendering API key is configured.
var ErrMissingReaderKey = errors.New("reader api key is not set (reader.api_key or JINA_API_KEY)")

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Reader   ReaderConfig   `yaml:"reader"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
	Identity IdentityConfig `yaml:"identity"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Export   ExportConfig   `yaml:"export"`
}

// ReaderConfig holds settings for the page rendering service.
type ReaderConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig holds settings for the OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxContentChars int     `yaml:"max_content_chars"`
}

// StorageConfig selects the document store and holds paths for the database and index.
type StorageConfig struct {
	Driver          string `yaml:"driver"`
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

// IdentityConfig controls how document ids are derived from URLs.
type IdentityConfig struct {
	NormalizeURLs bool `yaml:"normalize_urls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds inbox watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	OutputDir   string   `yaml:"output_dir"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ExportConfig holds the default batch output path. Empty means no file is written
// unless one is given on the command line.
type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault behaves like Load, but a missing file yields the default config.
// The second return value reports whether the file existed.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	cfg = &Config{}
	ApplyDefaults(cfg)
	if wd, wdErr := os.Getwd(); wdErr == nil {
		cfg.expandPaths(wd)
	}
	return cfg, false, nil
}

// Save writes the config to path, creating parent directories. The file holds
// credentials, so it is written owner-only.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides credentials and endpoints from the environment.
// Empty variables leave the file values in place.
func ApplyEnv(cfg *Config) {
	for _, o := range []struct {
		name string
		dst  *string
	}{
		{"JINA_API_KEY", &cfg.Reader.APIKey},
		{"OPENAI_API_KEY", &cfg.LLM.APIKey},
		{"OPENAI_BASE_URL", &cfg.LLM.BaseURL},
		{"MONGODB_URI", &cfg.Storage.MongoURI},
	} {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unknown storage driver %q (use %s or %s)", c.Storage.Driver, DriverSQLite, DriverMongo)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Reader.Timeout < 0 {
		return fmt.Errorf("invalid reader timeout %s", c.Reader.Timeout)
	}
	if c.LLM.MaxContentChars < 0 {
		return fmt.Errorf("invalid llm max_content_chars %d", c.LLM.MaxContentChars)
	}
	return nil
}

// ValidateScrape additionally requires the rendering key needed to process any URL.
func (c *Config) ValidateScrape() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Reader.APIKey) == "" {
		return ErrMissingReaderKey
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BleveIndexPath = expandPath(c.Storage.BleveIndexPath, configDir)
	c.Watch.OutputDir = expandPath(c.Watch.OutputDir, configDir)
	c.Export.Path = expandPath(c.Export.Path, configDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
