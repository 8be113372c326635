// Package app wires configuration into the shared FraudLake components
// used by the command-line tools.
package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/config"
	"github.com/fraudlake/fraudlake/internal/load"
	"github.com/fraudlake/fraudlake/internal/observability"
	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/internal/query"
	"github.com/fraudlake/fraudlake/internal/query/executor"
	"github.com/fraudlake/fraudlake/internal/storage"
	"github.com/fraudlake/fraudlake/internal/verify"
	"github.com/fraudlake/fraudlake/internal/views"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// App holds the shared resources behind the FraudLake tools.
type App struct {
	Config *config.Config

	Storage  storage.ObjectStorage
	Catalog  catalog.Catalog
	Loader   *load.Loader
	Executor *executor.Executor
	Views    *views.Materializer
	Verifier *verify.Verifier
	Stats    *observability.QueryStats
}

// New initializes storage, the catalog, and every component on top of
// them from the given configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{Config: cfg}

	var err error
	switch cfg.Storage.Type {
	case "local":
		a.Storage, err = storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3Cfg.Region = cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		a.Storage, err = storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("storage initialized: type=%s", cfg.Storage.Type)

	a.Catalog, err = catalog.NewCatalog(cfg.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	log.Printf("catalog initialized: %s", cfg.CatalogPath())

	layout, err := effectiveLayout(ctx, a.Catalog, cfg)
	if err != nil {
		a.Catalog.Close()
		return nil, err
	}

	builder := partition.NewBuilder(cfg.Load.SegmentDir)
	a.Loader, err = load.NewLoader(a.Storage, a.Catalog, builder, layout)
	if err != nil {
		a.Catalog.Close()
		return nil, fmt.Errorf("failed to initialize loader: %w", err)
	}

	a.Stats = observability.NewQueryStats(time.Hour)
	execCfg := executor.Config{
		Concurrency:   cfg.Query.Concurrency,
		DownloadDir:   cfg.Query.DownloadDir,
		MaxCacheBytes: cfg.Query.MaxCacheBytes,
		PoolConfig:    executor.DefaultPoolConfig(),
	}
	a.Executor, err = executor.New(query.NewPruner(a.Catalog, a.Storage), a.Storage, a.Stats, execCfg)
	if err != nil {
		a.Catalog.Close()
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}
	log.Printf("executor initialized: concurrency=%d layout=%s", cfg.Query.Concurrency, layout.Layout)

	a.Views = views.NewMaterializer(a.Executor, a.Storage, a.Catalog, cfg.Views.WorkDir)
	a.Verifier = verify.NewVerifier(a.Executor, a.Views, a.Catalog, a.Storage)

	return a, nil
}

// effectiveLayout prefers the layout recorded at load time over the
// configured one, so query tools cannot disagree with the loaded table.
func effectiveLayout(ctx context.Context, cat catalog.Catalog, cfg *config.Config) (types.LayoutConfig, error) {
	recorded, err := cat.GetTableMeta(ctx, "layout")
	if err != nil || recorded == "" {
		return cfg.LayoutConfig(), nil
	}

	layout := types.LayoutConfig{Layout: types.Layout(recorded)}
	if buckets, err := cat.GetTableMeta(ctx, "buckets"); err == nil && buckets != "" {
		if n, err := strconv.Atoi(buckets); err == nil {
			layout.Buckets = n
		}
	}
	if layout.Buckets == 0 {
		layout.Buckets = cfg.Table.Buckets
	}
	if err := layout.Validate(); err != nil {
		return types.LayoutConfig{}, fmt.Errorf("catalog records an unusable layout: %w", err)
	}
	if string(layout.Layout) != cfg.Table.Layout {
		log.Printf("table was loaded with %s layout, overriding configured %s", layout.Layout, cfg.Table.Layout)
	}
	return layout, nil
}

// Close releases the executor and the catalog.
func (a *App) Close() error {
	if a.Executor != nil {
		a.Executor.Close()
	}
	if a.Catalog != nil {
		return a.Catalog.Close()
	}
	return nil
}
