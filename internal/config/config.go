// Package config provides unified configuration for the FraudLake tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fraudlake/fraudlake/pkg/types"
)

// Config holds the configuration shared by all FraudLake commands.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Table configures the physical layout of the transactions table
	Table TableConfig `json:"table" yaml:"table"`

	// Load configures the bulk loader
	Load LoadConfig `json:"load" yaml:"load"`

	// Query configures the query executor
	Query QueryConfig `json:"query" yaml:"query"`

	// Views configures view materialization
	Views ViewsConfig `json:"views" yaml:"views"`

	// Storage configures the file store
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// TableConfig holds the physical table layout.
type TableConfig struct {
	// Layout is "flat" or "typed"
	Layout string `json:"layout" yaml:"layout"`

	// Buckets is the bucket count for the typed layout
	Buckets int `json:"buckets" yaml:"buckets"`
}

// LoadConfig holds loader configuration.
type LoadConfig struct {
	// SegmentDir is the local build directory for segment files
	SegmentDir string `json:"segment_dir" yaml:"segment_dir"`
}

// QueryConfig holds executor configuration.
type QueryConfig struct {
	// DownloadDir is the directory for downloaded segments
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// Concurrency is the number of parallel segment scans
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxCacheBytes bounds the downloaded-segment cache
	MaxCacheBytes int64 `json:"max_cache_bytes" yaml:"max_cache_bytes"`
}

// ViewsConfig holds materializer configuration.
type ViewsConfig struct {
	// WorkDir is the local build directory for view artifacts
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// StorageConfig holds file store configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (MinIO and friends)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/fraudlake",
		Table: TableConfig{
			Layout:  string(types.LayoutTyped),
			Buckets: 8,
		},
		Load: LoadConfig{
			SegmentDir: "",
		},
		Query: QueryConfig{
			DownloadDir:   "",
			Concurrency:   8,
			MaxCacheBytes: 1 << 30,
		},
		Views: ViewsConfig{
			WorkDir: "",
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve fills empty paths relative to DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/fraudlake"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Load.SegmentDir == "" {
		c.Load.SegmentDir = filepath.Join(c.DataDir, "segments")
	}
	if c.Query.DownloadDir == "" {
		c.Query.DownloadDir = filepath.Join(c.DataDir, "downloads")
	}
	if c.Views.WorkDir == "" {
		c.Views.WorkDir = filepath.Join(c.DataDir, "views")
	}
}

// SetDataDir repoints the data directory and rederives every path under
// it, discarding previously resolved paths.
func (c *Config) SetDataDir(dir string) {
	c.DataDir = dir
	c.Storage.Path = ""
	c.Load.SegmentDir = ""
	c.Query.DownloadDir = ""
	c.Views.WorkDir = ""
	c.Resolve()
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// LayoutConfig returns the table layout in executable form.
func (c *Config) LayoutConfig() types.LayoutConfig {
	return types.LayoutConfig{
		Layout:  types.Layout(c.Table.Layout),
		Buckets: c.Table.Buckets,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if err := c.LayoutConfig().Validate(); err != nil {
		return err
	}
	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}
	if c.Query.Concurrency < 0 {
		return fmt.Errorf("query.concurrency must not be negative, got %d", c.Query.Concurrency)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays configuration from FRAUDLAKE_* environment
// variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FRAUDLAKE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FRAUDLAKE_TABLE_LAYOUT"); v != "" {
		cfg.Table.Layout = v
	}
	if v := os.Getenv("FRAUDLAKE_TABLE_BUCKETS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Table.Buckets)
	}
	if v := os.Getenv("FRAUDLAKE_QUERY_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.Concurrency)
	}
	if v := os.Getenv("FRAUDLAKE_QUERY_MAX_CACHE_BYTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.MaxCacheBytes)
	}
	if v := os.Getenv("FRAUDLAKE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("FRAUDLAKE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("FRAUDLAKE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("FRAUDLAKE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("FRAUDLAKE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("FRAUDLAKE_S3_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}

// Load builds the effective configuration: defaults, then the optional
// file, then environment overrides, then path resolution.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Load.SegmentDir,
		c.Query.DownloadDir,
		c.Views.WorkDir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
