package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/pkg/types"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func segmentInfo(id, key string, bucket int, minAmount, maxAmount float64, rows, fraud int64) *partition.SegmentInfo {
	return &partition.SegmentInfo{
		SegmentID:    id,
		PartitionKey: types.PartitionKey{Value: key, Bucket: bucket},
		Layout:       types.LayoutTyped,
		RowCount:     rows,
		FraudCount:   fraud,
		SizeBytes:    4096,
		MinMaxStats: map[string]partition.MinMax{
			"tx_id":  {Min: int64(1), Max: int64(100)},
			"step":   {Min: int64(1), Max: int64(24)},
			"amount": {Min: minAmount, Max: maxAmount},
		},
		SchemaVersion: 1,
		CreatedAt:     time.Now(),
	}
}

func TestRegisterAndGetSegment(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	info := segmentInfo("TRANSFER/b000:abcd1234", types.TypeTransfer, 0, 10.0, 5000.0, 100, 7)
	if err := c.RegisterSegment(ctx, info, "segments/TRANSFER/b000/abcd.sqlite", "segments/TRANSFER/b000/abcd.meta.json"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	rec, err := c.GetSegment(ctx, "TRANSFER/b000:abcd1234")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.PartitionKey != types.TypeTransfer || rec.Bucket != 0 {
		t.Errorf("unexpected key: %s/%d", rec.PartitionKey, rec.Bucket)
	}
	if rec.RowCount != 100 || rec.FraudCount != 7 {
		t.Errorf("unexpected counts: %d/%d", rec.RowCount, rec.FraudCount)
	}
	if rec.MinAmount == nil || *rec.MinAmount != 10.0 {
		t.Errorf("unexpected min amount: %v", rec.MinAmount)
	}
	if rec.Layout != types.LayoutTyped {
		t.Errorf("unexpected layout: %s", rec.Layout)
	}
}

func TestGetSegmentNotFound(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.GetSegment(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing segment")
	}
}

func TestFindSegmentsPrunesByType(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	register := func(id, key string) {
		t.Helper()
		if err := c.RegisterSegment(ctx, segmentInfo(id, key, 0, 0, 100, 10, 1), id+".sqlite", id+".meta.json"); err != nil {
			t.Fatalf("register %s failed: %v", id, err)
		}
	}
	register("t1", types.TypeTransfer)
	register("t2", types.TypeTransfer)
	register("p1", types.TypePayment)
	register("c1", types.TypeCashOut)

	recs, err := c.FindSegments(ctx, []Predicate{
		{Column: types.PartitionColumn, Operator: "=", Value: types.TypeTransfer},
	})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(recs))
	}
	for _, r := range recs {
		if r.PartitionKey != types.TypeTransfer {
			t.Errorf("pruning returned wrong key %s", r.PartitionKey)
		}
	}
}

func TestFindSegmentsKeepsFlatSegmentsOnTypePredicate(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	flat := segmentInfo("all/b000:x", types.FlatKey, 0, 0, 100, 10, 1)
	flat.Layout = types.LayoutFlat
	if err := c.RegisterSegment(ctx, flat, "f.sqlite", "f.meta.json"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	recs, err := c.FindSegments(ctx, []Predicate{
		{Column: types.PartitionColumn, Operator: "=", Value: types.TypeTransfer},
	})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	// Flat segments carry tx_type as a column; pruning must keep them
	if len(recs) != 1 {
		t.Fatalf("expected flat segment to survive pruning, got %d records", len(recs))
	}
}

func TestFindSegmentsPrunesByAmountRange(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	low := segmentInfo("low", types.TypeTransfer, 0, 1.0, 99.0, 10, 0)
	high := segmentInfo("high", types.TypeTransfer, 1, 10_000.0, 90_000.0, 10, 0)
	if err := c.RegisterSegment(ctx, low, "low.sqlite", "low.meta.json"); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterSegment(ctx, high, "high.sqlite", "high.meta.json"); err != nil {
		t.Fatal(err)
	}

	recs, err := c.FindSegments(ctx, []Predicate{
		{Column: "amount", Operator: ">", Value: 5000.0},
	})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(recs) != 1 || recs[0].SegmentID != "high" {
		t.Errorf("expected only the high segment, got %d records", len(recs))
	}
}

func TestFindSegmentsIgnoresUnknownColumns(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.RegisterSegment(ctx, segmentInfo("s1", types.TypeDebit, 0, 0, 10, 5, 0), "s1.sqlite", "s1.meta.json"); err != nil {
		t.Fatal(err)
	}

	// name_dest has no catalog statistics; the predicate must not prune
	recs, err := c.FindSegments(ctx, []Predicate{
		{Column: "name_dest", Operator: "=", Value: "C999"},
	})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 segment, got %d", len(recs))
	}
}

func TestDistinctPartitionKeys(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for i, key := range []string{types.TypeTransfer, types.TypeTransfer, types.TypePayment} {
		info := segmentInfo(key+string(rune('a'+i)), key, i, 0, 10, 1, 0)
		if err := c.RegisterSegment(ctx, info, "x.sqlite", "x.meta.json"); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := c.DistinctPartitionKeys(ctx)
	if err != nil {
		t.Fatalf("distinct keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 distinct keys, got %v", keys)
	}
	if keys[0] != types.TypePayment || keys[1] != types.TypeTransfer {
		t.Errorf("unexpected key order: %v", keys)
	}
}

func TestDeleteSegments(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.RegisterSegment(ctx, segmentInfo("d1", types.TypeDebit, 0, 0, 10, 5, 0), "d1.sqlite", "d1.meta.json"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteSegments(ctx, []string{"d1"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	count, err := c.GetSegmentCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 segments after delete, got %d", count)
	}
}

func TestViewRegistrationReplaces(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	first := &ViewRecord{Name: "fraud_transactions", ObjectPath: "views/v1.sqlite", RowCount: 10, SizeBytes: 1024, BuiltAt: time.Now().Add(-time.Hour)}
	if err := c.RegisterView(ctx, first); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	second := &ViewRecord{Name: "fraud_transactions", ObjectPath: "views/v2.sqlite", RowCount: 12, SizeBytes: 2048, BuiltAt: time.Now()}
	if err := c.RegisterView(ctx, second); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	got, err := c.GetView(ctx, "fraud_transactions")
	if err != nil {
		t.Fatalf("get view failed: %v", err)
	}
	if got.ObjectPath != "views/v2.sqlite" || got.RowCount != 12 {
		t.Errorf("view was not replaced: %+v", got)
	}

	views, err := c.ListViews(ctx)
	if err != nil {
		t.Fatalf("list views failed: %v", err)
	}
	if len(views) != 1 {
		t.Errorf("expected 1 view, got %d", len(views))
	}
}

func TestTableMeta(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.SetTableMeta(ctx, "layout", "typed"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.SetTableMeta(ctx, "layout", "flat"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := c.GetTableMeta(ctx, "layout")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "flat" {
		t.Errorf("expected flat, got %s", got)
	}

	missing, err := c.GetTableMeta(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if missing != "" {
		t.Errorf("expected empty value, got %s", missing)
	}
}
