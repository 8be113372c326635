package aggregator

import (
	"testing"

	"github.com/fraudlake/fraudlake/internal/query"
)

func TestPartialCountSumAvg(t *testing.T) {
	count := NewPartial(query.AggCount)
	sum := NewPartial(query.AggSum)
	avg := NewPartial(query.AggAvg)

	for _, v := range []interface{}{10.0, 20.0, nil, 30.0} {
		count.Accumulate(v)
		sum.Accumulate(v)
		avg.Accumulate(v)
	}

	if got := count.Result(); got != int64(3) {
		t.Errorf("count: expected 3, got %v", got)
	}
	if got := sum.Result(); got != 60.0 {
		t.Errorf("sum: expected 60, got %v", got)
	}
	if got := avg.Result(); got != 20.0 {
		t.Errorf("avg: expected 20, got %v", got)
	}
}

func TestPartialMinMax(t *testing.T) {
	min := NewPartial(query.AggMin)
	max := NewPartial(query.AggMax)
	for _, v := range []interface{}{5.0, 1.0, 9.0} {
		min.Accumulate(v)
		max.Accumulate(v)
	}
	if min.Result() != 1.0 || max.Result() != 9.0 {
		t.Errorf("expected min 1 max 9, got %v / %v", min.Result(), max.Result())
	}
}

func TestPartialEmptyResults(t *testing.T) {
	if got := NewPartial(query.AggCount).Result(); got != int64(0) {
		t.Errorf("empty COUNT must be 0, got %v", got)
	}
	if got := NewPartial(query.AggSum).Result(); got != nil {
		t.Errorf("empty SUM must be NULL, got %v", got)
	}
}

func TestMergeKeepsAvgWeighted(t *testing.T) {
	// segment A: two values averaging 10; segment B: one value of 40
	a := NewPartial(query.AggAvg)
	a.Accumulate(5.0)
	a.Accumulate(15.0)
	b := NewPartial(query.AggAvg)
	b.Accumulate(40.0)

	a.Merge(b)
	if got := a.Result(); got != 20.0 {
		t.Errorf("weighted avg: expected 20, got %v", got)
	}
}

func TestMergeMinMaxAcrossSegments(t *testing.T) {
	a := NewPartial(query.AggMax)
	a.Accumulate(100.0)
	b := NewPartial(query.AggMax)
	b.Accumulate(250.0)
	a.Merge(b)
	if got := a.Result(); got != 250.0 {
		t.Errorf("expected 250, got %v", got)
	}
}

func TestGroupSetAccumulateAndMerge(t *testing.T) {
	aggs := []query.Aggregate{
		{Func: query.AggCount, Alias: "n"},
		{Func: query.AggSum, Column: "amount"},
	}
	cols := []string{"tx_type", "amount"}
	groupIdx := ResolveGroupIndices([]string{"tx_type"}, cols)
	aggIdx := ResolveColumnIndices(aggs, cols)

	a := NewGroupSet(aggs)
	a.AccumulateRow([]interface{}{"TRANSFER", 100.0}, groupIdx, aggIdx)
	a.AccumulateRow([]interface{}{"PAYMENT", 10.0}, groupIdx, aggIdx)

	b := NewGroupSet(aggs)
	b.AccumulateRow([]interface{}{"TRANSFER", 50.0}, groupIdx, aggIdx)

	a.Merge(b)
	if a.Len() != 2 {
		t.Fatalf("expected 2 groups, got %d", a.Len())
	}

	for _, row := range a.Rows() {
		switch row[0] {
		case "TRANSFER":
			if row[1] != int64(2) || row[2] != 150.0 {
				t.Errorf("TRANSFER group wrong: %v", row)
			}
		case "PAYMENT":
			if row[1] != int64(1) || row[2] != 10.0 {
				t.Errorf("PAYMENT group wrong: %v", row)
			}
		default:
			t.Errorf("unexpected group %v", row[0])
		}
	}
}

func TestResolveColumnIndicesCountStar(t *testing.T) {
	aggs := []query.Aggregate{{Func: query.AggCount}}
	idx := ResolveColumnIndices(aggs, []string{"tx_id"})
	if idx[0] != -1 {
		t.Errorf("COUNT(*) must map to -1, got %d", idx[0])
	}
}

func TestSortRowsMultiKey(t *testing.T) {
	cols := []string{"amount", "tx_id"}
	rows := [][]interface{}{
		{100.0, int64(3)},
		{200.0, int64(1)},
		{100.0, int64(2)},
	}
	SortRows(rows, cols, []query.OrderBy{
		{Column: "amount", Desc: true},
		{Column: "tx_id"},
	})

	if rows[0][1] != int64(1) || rows[1][1] != int64(2) || rows[2][1] != int64(3) {
		t.Errorf("unexpected order: %v", rows)
	}
}

func TestApplyLimit(t *testing.T) {
	rows := [][]interface{}{{1}, {2}, {3}, {4}}
	limit := int64(2)

	got := ApplyLimit(rows, &limit, 1)
	if len(got) != 2 || got[0][0] != 2 || got[1][0] != 3 {
		t.Errorf("unexpected slice: %v", got)
	}

	if got := ApplyLimit(rows, nil, 10); len(got) != 0 {
		t.Errorf("offset past end must be empty, got %v", got)
	}
}
