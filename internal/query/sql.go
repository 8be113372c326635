package query

import (
	"fmt"
	"strings"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// ScanColumns returns the columns the executor must read from each
// segment: the projection for plain queries, the grouping and aggregate
// argument columns for aggregate queries.
func (q *Query) ScanColumns() []string {
	if !q.IsAggregate() {
		return q.Projection
	}

	var cols []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range q.GroupBy {
		add(c)
	}
	for _, agg := range q.Aggregates {
		add(agg.Column)
	}
	if len(cols) == 0 {
		// pure COUNT(*): scan the primary key so rows still iterate
		add("tx_id")
	}
	return cols
}

// BuildSegmentSQL renders the per-segment scan statement. Typed-layout
// segments do not store tx_type, so the partition key value is injected
// as a bound literal and tx_type predicates are left out of the WHERE
// clause (SegmentTypeMatches decides those before the scan).
func BuildSegmentSQL(q *Query, rec *catalog.SegmentRecord) (string, []interface{}) {
	typed := rec.Layout == types.LayoutTyped

	var args []interface{}
	scanCols := q.ScanColumns()
	selects := make([]string, len(scanCols))
	for i, col := range scanCols {
		if typed && col == types.PartitionColumn {
			selects[i] = "? AS " + types.PartitionColumn
			args = append(args, rec.PartitionKey)
			continue
		}
		selects[i] = col
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(partition.TableName)

	var clauses []string
	for _, p := range q.Predicates {
		if typed && p.Column == types.PartitionColumn {
			continue
		}
		clause, clauseArgs := predicateSQL(p)
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}
	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	// Plain ordered-and-limited queries can be cut down per segment: the
	// global top-k is always within each segment's top-k.
	if !q.IsAggregate() && len(q.OrderBy) > 0 {
		orders := make([]string, len(q.OrderBy))
		for i, ob := range q.OrderBy {
			dir := "ASC"
			if ob.Desc {
				dir = "DESC"
			}
			orders[i] = ob.Column + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))

		if q.Limit != nil {
			sb.WriteString(fmt.Sprintf(" LIMIT %d", *q.Limit+q.Offset))
		}
	}

	return sb.String(), args
}

// predicateSQL renders one predicate as a parameterized clause.
func predicateSQL(p Predicate) (string, []interface{}) {
	if p.Operator == "IN" {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(p.Values)), ", ")
		return fmt.Sprintf("%s IN (%s)", p.Column, placeholders), p.Values
	}
	return fmt.Sprintf("%s %s ?", p.Column, p.Operator), []interface{}{p.Value}
}

// SegmentTypeMatches evaluates the plan's tx_type predicates against a
// typed segment's partition key. Flat segments always match here; their
// tx_type column is filtered in SQL.
func SegmentTypeMatches(q *Query, rec *catalog.SegmentRecord) bool {
	if rec.Layout != types.LayoutTyped {
		return true
	}
	for _, p := range q.Predicates {
		if p.Column != types.PartitionColumn {
			continue
		}
		if !typeValueMatches(rec.PartitionKey, p) {
			return false
		}
	}
	return true
}

func typeValueMatches(key string, p Predicate) bool {
	str := func(v interface{}) string {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	switch p.Operator {
	case "=":
		return key == str(p.Value)
	case "!=":
		return key != str(p.Value)
	case "<":
		return key < str(p.Value)
	case "<=":
		return key <= str(p.Value)
	case ">":
		return key > str(p.Value)
	case ">=":
		return key >= str(p.Value)
	case "IN":
		for _, v := range p.Values {
			if key == str(v) {
				return true
			}
		}
		return false
	}
	return true
}
