package load

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/internal/storage"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// SegmentPrefix is the object-store prefix for segment files.
const SegmentPrefix = "segments"

// Loader bulk-loads a source file into partition segments. Base records
// are loaded once; there is no append or incremental path.
type Loader struct {
	store   storage.ObjectStorage
	catalog catalog.Catalog
	builder *partition.Builder
	metaGen *partition.MetadataGenerator
	router  *partition.Router
	layout  types.LayoutConfig
}

// Result summarizes a completed load.
type Result struct {
	RowsLoaded   int64
	FraudRows    int64
	SegmentCount int
	Layout       types.Layout
}

// NewLoader creates a loader for the given layout.
func NewLoader(store storage.ObjectStorage, cat catalog.Catalog, builder *partition.Builder, layoutCfg types.LayoutConfig) (*Loader, error) {
	router, err := partition.NewRouter(layoutCfg)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return &Loader{
		store:   store,
		catalog: cat,
		builder: builder,
		metaGen: partition.NewMetadataGenerator(),
		router:  router,
		layout:  layoutCfg,
	}, nil
}

// LoadObject streams a source object out of the file store and loads it.
// Sources ending in ".snappy" are decompressed on the fly.
func (l *Loader) LoadObject(ctx context.Context, objectPath string) (*Result, error) {
	rc, err := l.store.OpenObject(ctx, objectPath)
	if err != nil {
		return nil, fmt.Errorf("load: failed to open source %s: %w", objectPath, err)
	}
	defer rc.Close()

	return l.load(ctx, sourceReader(rc, objectPath))
}

// LoadFile loads a source file from the local filesystem.
func (l *Loader) LoadFile(ctx context.Context, localPath string) (*Result, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("load: failed to open source %s: %w", localPath, err)
	}
	defer f.Close()

	return l.load(ctx, sourceReader(f, localPath))
}

// load drains the reader, routes the rows, builds one segment per
// partition key, uploads each segment with its sidecar, and registers
// everything in the catalog.
func (l *Loader) load(ctx context.Context, r *Reader) (*Result, error) {
	txs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("load: source contains no records")
	}

	groups, err := l.router.RouteRows(txs)
	if err != nil {
		return nil, err
	}

	result := &Result{Layout: l.layout.Layout}

	for key, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := l.builder.Build(ctx, group, key, l.layout.Layout)
		if err != nil {
			return nil, fmt.Errorf("load: failed to build segment %s: %w", key.Segment(), err)
		}

		metaPath, err := l.metaGen.GenerateAndWrite(info, group)
		if err != nil {
			return nil, fmt.Errorf("load: failed to write metadata for %s: %w", info.SegmentID, err)
		}
		info.MetadataPath = metaPath

		objectPath, objectMetaPath := segmentObjectPaths(info)
		if err := l.store.Upload(ctx, info.SQLitePath, objectPath); err != nil {
			return nil, fmt.Errorf("load: failed to upload segment %s: %w", info.SegmentID, err)
		}
		if err := l.store.Upload(ctx, metaPath, objectMetaPath); err != nil {
			return nil, fmt.Errorf("load: failed to upload metadata for %s: %w", info.SegmentID, err)
		}

		if err := l.catalog.RegisterSegment(ctx, info, objectPath, objectMetaPath); err != nil {
			return nil, fmt.Errorf("load: failed to register segment %s: %w", info.SegmentID, err)
		}

		result.RowsLoaded += info.RowCount
		result.FraudRows += info.FraudCount
		result.SegmentCount++
		log.Printf("load: segment %s registered (%d rows, %d fraud)", info.SegmentID, info.RowCount, info.FraudCount)
	}

	if err := l.recordTableMeta(ctx); err != nil {
		return nil, err
	}

	log.Printf("load: completed, %d rows across %d segments (%s layout)",
		result.RowsLoaded, result.SegmentCount, result.Layout)
	return result, nil
}

// recordTableMeta persists the layout so queries and verification know how
// the table was built.
func (l *Loader) recordTableMeta(ctx context.Context) error {
	if err := l.catalog.SetTableMeta(ctx, "layout", string(l.layout.Layout)); err != nil {
		return err
	}
	return l.catalog.SetTableMeta(ctx, "buckets", strconv.Itoa(l.layout.Buckets))
}

// segmentObjectPaths derives the object-store paths for a segment and its
// metadata sidecar.
func segmentObjectPaths(info *partition.SegmentInfo) (string, string) {
	base := path.Base(info.SQLitePath)
	objectPath := path.Join(SegmentPrefix, info.PartitionKey.Segment(), base)
	metaPath := strings.TrimSuffix(objectPath, ".sqlite") + ".meta.json"
	return objectPath, metaPath
}

// sourceReader wraps the stream in a snappy decoder when the source name
// says so.
func sourceReader(r io.Reader, name string) *Reader {
	if strings.HasSuffix(name, ".snappy") {
		return NewSnappyReader(r)
	}
	return NewReader(r)
}
