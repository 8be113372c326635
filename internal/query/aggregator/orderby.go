package aggregator

import (
	"sort"

	"github.com/fraudlake/fraudlake/internal/query"
)

// SortRows orders result rows by the plan's ORDER BY columns. Columns
// names the row slots; unknown ORDER BY columns are ignored. The sort is
// stable so equal keys keep their arrival order.
func SortRows(rows [][]interface{}, columns []string, orderBy []query.OrderBy) {
	if len(orderBy) == 0 {
		return
	}

	colMap := make(map[string]int, len(columns))
	for i, c := range columns {
		colMap[c] = i
	}

	type sortKey struct {
		idx  int
		desc bool
	}
	keys := make([]sortKey, 0, len(orderBy))
	for _, ob := range orderBy {
		if idx, ok := colMap[ob.Column]; ok {
			keys = append(keys, sortKey{idx: idx, desc: ob.Desc})
		}
	}
	if len(keys) == 0 {
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareValues(rows[i][k.idx], rows[j][k.idx])
			if cmp == 0 {
				continue
			}
			if k.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// ApplyLimit slices rows down to the plan's OFFSET and LIMIT.
func ApplyLimit(rows [][]interface{}, limit *int64, offset int64) [][]interface{} {
	if offset > 0 {
		if offset >= int64(len(rows)) {
			return rows[:0]
		}
		rows = rows[offset:]
	}
	if limit != nil && int64(len(rows)) > *limit {
		rows = rows[:*limit]
	}
	return rows
}
