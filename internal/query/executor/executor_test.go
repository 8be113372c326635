package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/load"
	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/internal/query"
	"github.com/fraudlake/fraudlake/internal/storage"
	"github.com/fraudlake/fraudlake/pkg/types"
)

var fixtureTxs = []types.Transaction{
	{TxID: 1, Step: 1, Type: types.TypeTransfer, Amount: 181.0, NameOrig: "C100", NameDest: "C200", IsFraud: true},
	{TxID: 2, Step: 1, Type: types.TypeTransfer, Amount: 9000.5, NameOrig: "C101", NameDest: "C201"},
	{TxID: 3, Step: 2, Type: types.TypePayment, Amount: 55.25, NameOrig: "C102", NameDest: "M300"},
	{TxID: 4, Step: 2, Type: types.TypeCashOut, Amount: 181.0, NameOrig: "C100", NameDest: "C202", IsFraud: true},
	{TxID: 5, Step: 3, Type: types.TypePayment, Amount: 12.0, NameOrig: "C103", NameDest: "M301"},
}

// buildFixture loads the fixture rows into a fresh store and catalog and
// returns an executor over them.
func buildFixture(t *testing.T, layout types.LayoutConfig) (*Executor, catalog.Catalog) {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	store, err := storage.NewLocalStorage(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	cat, err := catalog.NewCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	builder := partition.NewBuilder(filepath.Join(dir, "build"))
	router, err := partition.NewRouter(layout)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	metaGen := partition.NewMetadataGenerator()

	groups, err := router.RouteRows(fixtureTxs)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	for key, txs := range groups {
		info, err := builder.Build(ctx, txs, key, layout.Layout)
		if err != nil {
			t.Fatalf("build %s: %v", key.Segment(), err)
		}
		metaPath, err := metaGen.GenerateAndWrite(info, txs)
		if err != nil {
			t.Fatalf("meta %s: %v", info.SegmentID, err)
		}
		objPath := load.SegmentPrefix + "/" + key.Segment() + "/" + filepath.Base(info.SQLitePath)
		objMeta := load.SegmentPrefix + "/" + key.Segment() + "/" + filepath.Base(metaPath)
		if err := store.Upload(ctx, info.SQLitePath, objPath); err != nil {
			t.Fatalf("upload: %v", err)
		}
		if err := store.Upload(ctx, metaPath, objMeta); err != nil {
			t.Fatalf("upload meta: %v", err)
		}
		if err := cat.RegisterSegment(ctx, info, objPath, objMeta); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	pruner := query.NewPruner(cat, store)
	cfg := DefaultConfig()
	cfg.DownloadDir = filepath.Join(dir, "downloads")
	exec, err := New(pruner, store, nil, cfg)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	t.Cleanup(func() { exec.Close() })
	return exec, cat
}

func layouts() map[string]types.LayoutConfig {
	return map[string]types.LayoutConfig{
		"flat":  {Layout: types.LayoutFlat},
		"typed": {Layout: types.LayoutTyped, Buckets: 4},
	}
}

func TestExecuteFullScanBothLayouts(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			exec, _ := buildFixture(t, layout)

			q := query.SelectAll()
			q.OrderBy = []query.OrderBy{{Column: "tx_id"}}
			res, err := exec.Execute(context.Background(), q)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if len(res.Rows) != len(fixtureTxs) {
				t.Fatalf("expected %d rows, got %d", len(fixtureTxs), len(res.Rows))
			}

			// tx_type must come back identically in both layouts
			typeIdx := indexOf(t, res.Columns, "tx_type")
			idIdx := indexOf(t, res.Columns, "tx_id")
			for i, row := range res.Rows {
				if row[idIdx] != fixtureTxs[i].TxID {
					t.Errorf("row %d: expected tx_id %d, got %v", i, fixtureTxs[i].TxID, row[idIdx])
				}
				if row[typeIdx] != fixtureTxs[i].Type {
					t.Errorf("row %d: expected type %s, got %v", i, fixtureTxs[i].Type, row[typeIdx])
				}
			}
		})
	}
}

func TestExecuteTypePredicateBothLayouts(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			exec, _ := buildFixture(t, layout)

			q := &query.Query{
				Projection: []string{"tx_id", "tx_type"},
				Predicates: []query.Predicate{{Column: "tx_type", Operator: "=", Value: types.TypePayment}},
				OrderBy:    []query.OrderBy{{Column: "tx_id"}},
			}
			res, err := exec.Execute(context.Background(), q)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if len(res.Rows) != 2 {
				t.Fatalf("expected 2 PAYMENT rows, got %d", len(res.Rows))
			}
			if res.Rows[0][0] != int64(3) || res.Rows[1][0] != int64(5) {
				t.Errorf("unexpected rows: %v", res.Rows)
			}
		})
	}
}

func TestExecuteFraudFilterWithOrderAndLimit(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			exec, _ := buildFixture(t, layout)

			limit := int64(1)
			q := &query.Query{
				Projection: []string{"tx_id", "amount", "is_fraud"},
				Predicates: []query.Predicate{{Column: "is_fraud", Operator: "=", Value: 1}},
				OrderBy:    []query.OrderBy{{Column: "amount", Desc: true}, {Column: "tx_id"}},
				Limit:      &limit,
			}
			res, err := exec.Execute(context.Background(), q)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if len(res.Rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(res.Rows))
			}
			// both fraud rows have amount 181.0; tx_id breaks the tie
			if res.Rows[0][0] != int64(1) {
				t.Errorf("expected tx 1, got %v", res.Rows[0][0])
			}
		})
	}
}

func TestExecuteGroupByTypeBothLayouts(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			exec, _ := buildFixture(t, layout)

			q := &query.Query{
				GroupBy: []string{"tx_type"},
				Aggregates: []query.Aggregate{
					{Func: query.AggCount, Alias: "total_count"},
					{Func: query.AggSum, Column: "is_fraud", Alias: "fraud_count"},
				},
				OrderBy: []query.OrderBy{{Column: "tx_type"}},
			}
			res, err := exec.Execute(context.Background(), q)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}

			want := map[string][2]float64{
				types.TypeCashOut:  {1, 1},
				types.TypePayment:  {2, 0},
				types.TypeTransfer: {2, 1},
			}
			if len(res.Rows) != len(want) {
				t.Fatalf("expected %d groups, got %d: %v", len(want), len(res.Rows), res.Rows)
			}
			for _, row := range res.Rows {
				typ := row[0].(string)
				w, ok := want[typ]
				if !ok {
					t.Errorf("unexpected group %s", typ)
					continue
				}
				if row[1] != int64(w[0]) {
					t.Errorf("%s: expected total %v, got %v", typ, w[0], row[1])
				}
				if row[2] != w[1] {
					t.Errorf("%s: expected fraud %v, got %v", typ, w[1], row[2])
				}
			}
		})
	}
}

func TestExecuteGlobalAggregates(t *testing.T) {
	exec, _ := buildFixture(t, types.LayoutConfig{Layout: types.LayoutTyped, Buckets: 4})

	q := &query.Query{
		Aggregates: []query.Aggregate{
			{Func: query.AggCount, Alias: "n"},
			{Func: query.AggMax, Column: "amount", Alias: "max_amount"},
			{Func: query.AggAvg, Column: "amount", Alias: "avg_amount"},
		},
	}
	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected single aggregate row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if row[0] != int64(5) {
		t.Errorf("expected count 5, got %v", row[0])
	}
	if row[1] != 9000.5 {
		t.Errorf("expected max 9000.5, got %v", row[1])
	}
	wantAvg := (181.0 + 9000.5 + 55.25 + 181.0 + 12.0) / 5
	if row[2] != wantAvg {
		t.Errorf("expected avg %v, got %v", wantAvg, row[2])
	}
}

func TestExecutePruningSkipsSegments(t *testing.T) {
	exec, _ := buildFixture(t, types.LayoutConfig{Layout: types.LayoutTyped, Buckets: 4})

	q := &query.Query{
		Projection: []string{"tx_id"},
		Predicates: []query.Predicate{{Column: "tx_type", Operator: "=", Value: types.TypeCashOut}},
	}
	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Stats.SegmentsPruned == 0 {
		t.Error("expected typed layout to prune other-type segments")
	}
}

func TestExecuteNameOrigBloomPruning(t *testing.T) {
	exec, _ := buildFixture(t, types.LayoutConfig{Layout: types.LayoutTyped, Buckets: 4})

	q := &query.Query{
		Projection: []string{"tx_id", "name_orig"},
		Predicates: []query.Predicate{{Column: "name_orig", Operator: "=", Value: "C103"}},
	}
	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != int64(5) {
		t.Fatalf("expected only tx 5, got %v", res.Rows)
	}
}

func TestExecuteInvalidPlan(t *testing.T) {
	exec, _ := buildFixture(t, types.LayoutConfig{Layout: types.LayoutFlat})

	q := &query.Query{Projection: []string{"bogus"}}
	if _, err := exec.Execute(context.Background(), q); err == nil {
		t.Fatal("expected validation error")
	}
}

func indexOf(t *testing.T, cols []string, name string) int {
	t.Helper()
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %s not in %v", name, cols)
	return -1
}
