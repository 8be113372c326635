package aggregator

import (
	"fmt"
	"strings"

	"github.com/fraudlake/fraudlake/internal/query"
)

// GroupKey is the string form of a GROUP BY key tuple, used to combine
// groups across segments.
type GroupKey = string

// Group holds the key values and partial aggregates for one group.
type Group struct {
	KeyValues []interface{}
	Partials  *PartialSet
}

// GroupSet accumulates grouped partials for one segment and merges
// group sets across segments.
type GroupSet struct {
	aggs   []query.Aggregate
	groups map[GroupKey]*Group
}

// NewGroupSet creates an empty group set for the plan's aggregates.
func NewGroupSet(aggs []query.Aggregate) *GroupSet {
	return &GroupSet{
		aggs:   aggs,
		groups: make(map[GroupKey]*Group),
	}
}

// AccumulateRow folds one scanned row into its group. groupIndices maps
// each GROUP BY column to a row index; aggIndices follows the
// ResolveColumnIndices convention.
func (g *GroupSet) AccumulateRow(row []interface{}, groupIndices, aggIndices []int) {
	keyVals := make([]interface{}, len(groupIndices))
	for i, idx := range groupIndices {
		if idx >= 0 && idx < len(row) {
			keyVals[i] = row[idx]
		}
	}
	key := groupKeyString(keyVals)

	grp, ok := g.groups[key]
	if !ok {
		grp = &Group{KeyValues: keyVals, Partials: NewPartialSet(g.aggs)}
		g.groups[key] = grp
	}
	grp.Partials.AccumulateRow(row, aggIndices)
}

// Merge folds another group set into this one; groups sharing a key
// combine their partials.
func (g *GroupSet) Merge(other *GroupSet) {
	for key, grp := range other.groups {
		existing, ok := g.groups[key]
		if !ok {
			g.groups[key] = grp
			continue
		}
		existing.Partials.Merge(grp.Partials)
	}
}

// Len returns the number of distinct groups.
func (g *GroupSet) Len() int {
	return len(g.groups)
}

// Rows converts the merged groups into result rows: key values first,
// aggregate results after, matching the plan's output column order.
func (g *GroupSet) Rows() [][]interface{} {
	rows := make([][]interface{}, 0, len(g.groups))
	for _, grp := range g.groups {
		row := make([]interface{}, 0, len(grp.KeyValues)+len(grp.Partials.Partials))
		row = append(row, grp.KeyValues...)
		row = append(row, grp.Partials.Results()...)
		rows = append(rows, row)
	}
	return rows
}

// ResolveGroupIndices maps GROUP BY columns to scanned column indices.
func ResolveGroupIndices(groupBy []string, columns []string) []int {
	colMap := make(map[string]int, len(columns))
	for i, c := range columns {
		colMap[c] = i
	}

	indices := make([]int, len(groupBy))
	for i, col := range groupBy {
		if idx, ok := colMap[col]; ok {
			indices[i] = idx
		} else {
			indices[i] = -1
		}
	}
	return indices
}

// groupKeyString produces a deterministic key from group values.
func groupKeyString(vals []interface{}) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			parts[i] = "<NULL>"
		} else {
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return strings.Join(parts, "|")
}
