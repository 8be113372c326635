package load

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/internal/storage"
	"github.com/fraudlake/fraudlake/pkg/types"
)

func newTestLoader(t *testing.T, layout types.LayoutConfig) (*Loader, storage.ObjectStorage, catalog.Catalog) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewLocalStorage(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	cat, err := catalog.NewCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	builder := partition.NewBuilder(filepath.Join(dir, "segments"))
	loader, err := NewLoader(store, cat, builder, layout)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	return loader, store, cat
}

func writeSourceFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	return path
}

func TestLoadFileTypedLayout(t *testing.T) {
	loader, store, cat := newTestLoader(t, types.LayoutConfig{Layout: types.LayoutTyped, Buckets: 4})
	ctx := context.Background()

	result, err := loader.LoadFile(ctx, writeSourceFile(t, sampleCSV))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if result.RowsLoaded != 3 {
		t.Errorf("expected 3 rows, got %d", result.RowsLoaded)
	}
	if result.FraudRows != 2 {
		t.Errorf("expected 2 fraud rows, got %d", result.FraudRows)
	}
	// One segment per (type, bucket); the sample has 3 distinct types
	if result.SegmentCount != 3 {
		t.Errorf("expected 3 segments, got %d", result.SegmentCount)
	}

	count, err := cat.GetSegmentCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if int(count) != result.SegmentCount {
		t.Errorf("catalog has %d segments, loader reported %d", count, result.SegmentCount)
	}

	keys, err := cat.DistinctPartitionKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Errorf("expected 3 partition keys, got %v", keys)
	}

	objects, err := store.ListObjects(ctx, SegmentPrefix)
	if err != nil {
		t.Fatal(err)
	}
	// each segment ships with its sidecar
	if len(objects) != 2*result.SegmentCount {
		t.Errorf("expected %d objects, got %d: %v", 2*result.SegmentCount, len(objects), objects)
	}

	layout, err := cat.GetTableMeta(ctx, "layout")
	if err != nil {
		t.Fatal(err)
	}
	if layout != string(types.LayoutTyped) {
		t.Errorf("expected typed layout recorded, got %q", layout)
	}
}

func TestLoadFileFlatLayout(t *testing.T) {
	loader, _, cat := newTestLoader(t, types.LayoutConfig{Layout: types.LayoutFlat})
	ctx := context.Background()

	result, err := loader.LoadFile(ctx, writeSourceFile(t, sampleCSV))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if result.SegmentCount != 1 {
		t.Errorf("flat layout must produce a single segment, got %d", result.SegmentCount)
	}

	keys, err := cat.DistinctPartitionKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != types.FlatKey {
		t.Errorf("expected single %q key, got %v", types.FlatKey, keys)
	}
}

func TestLoadObjectFromStore(t *testing.T) {
	loader, store, _ := newTestLoader(t, types.LayoutConfig{Layout: types.LayoutFlat})
	ctx := context.Background()

	src := writeSourceFile(t, sampleCSV)
	if err := store.Upload(ctx, src, "raw/transactions.csv"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	result, err := loader.LoadObject(ctx, "raw/transactions.csv")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if result.RowsLoaded != 3 {
		t.Errorf("expected 3 rows, got %d", result.RowsLoaded)
	}
}

func TestLoadEmptySource(t *testing.T) {
	loader, _, _ := newTestLoader(t, types.LayoutConfig{Layout: types.LayoutFlat})
	if _, err := loader.LoadFile(context.Background(), writeSourceFile(t, "")); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestLoadMalformedSourceAborts(t *testing.T) {
	loader, _, cat := newTestLoader(t, types.LayoutConfig{Layout: types.LayoutFlat})
	ctx := context.Background()

	bad := sampleCSV + "1,PAYMENT,garbage,C1,0,0,M1,0,0,0,0\n"
	if _, err := loader.LoadFile(ctx, writeSourceFile(t, bad)); err == nil {
		t.Fatal("expected error for malformed row")
	}

	// nothing may be registered on failure
	count, err := cat.GetSegmentCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected no registered segments, got %d", count)
	}
}
