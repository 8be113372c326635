// Package query provides planning and pruning for queries over the
// transactions table. A query is a typed plan: projection, predicates,
// optional aggregates with grouping, ordering and a limit. The executor
// fans the plan out across the catalog's surviving segments.
package query

import (
	"fmt"
	"strings"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/errors"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// AggFunc identifies an aggregate function.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
	AggAvg   AggFunc = "AVG"
)

// Predicate is a filter on a single column. Operator is one of
// =, !=, <, <=, >, >= or IN.
type Predicate struct {
	Column   string
	Operator string
	Value    interface{}
	Values   []interface{} // IN only
}

// Aggregate is one aggregate output column. An empty Column means
// COUNT(*).
type Aggregate struct {
	Func   AggFunc
	Column string
	Alias  string
}

// OrderBy sorts the result on a single output column.
type OrderBy struct {
	Column string
	Desc   bool
}

// Query is the executable plan. Projection and Aggregates are mutually
// exclusive; GroupBy requires Aggregates.
type Query struct {
	Projection []string
	Predicates []Predicate
	Aggregates []Aggregate
	GroupBy    []string
	OrderBy    []OrderBy
	Limit      *int64
	Offset     int64
}

// IsAggregate reports whether the query produces aggregate output.
func (q *Query) IsAggregate() bool {
	return len(q.Aggregates) > 0
}

// OutputColumns returns the result column names in output order.
func (q *Query) OutputColumns() []string {
	if !q.IsAggregate() {
		return q.Projection
	}
	cols := make([]string, 0, len(q.GroupBy)+len(q.Aggregates))
	cols = append(cols, q.GroupBy...)
	for _, agg := range q.Aggregates {
		cols = append(cols, agg.OutputName())
	}
	return cols
}

// OutputName returns the result column name for an aggregate.
func (a Aggregate) OutputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	arg := a.Column
	if arg == "" {
		arg = "*"
	}
	return fmt.Sprintf("%s(%s)", strings.ToLower(string(a.Func)), arg)
}

// Validate checks the plan against the base table schema.
func (q *Query) Validate() error {
	schema := types.BaseSchema()

	if q.IsAggregate() && len(q.Projection) > 0 {
		return errors.NewQueryError(errors.CodeInvalidPlan,
			"a query selects either plain columns or aggregates, not both")
	}
	if !q.IsAggregate() && len(q.GroupBy) > 0 {
		return errors.NewQueryError(errors.CodeInvalidPlan,
			"GROUP BY requires at least one aggregate")
	}
	if !q.IsAggregate() && len(q.Projection) == 0 {
		return errors.NewQueryError(errors.CodeInvalidPlan,
			"a plain query must project at least one column")
	}

	for _, col := range q.Projection {
		if !schema.HasColumn(col) {
			return unknownColumn(col)
		}
	}
	for _, col := range q.GroupBy {
		if !schema.HasColumn(col) {
			return unknownColumn(col)
		}
	}
	for _, p := range q.Predicates {
		if !schema.HasColumn(p.Column) {
			return unknownColumn(p.Column)
		}
		switch p.Operator {
		case "=", "!=", "<", "<=", ">", ">=":
		case "IN":
			if len(p.Values) == 0 {
				return errors.NewQueryError(errors.CodeInvalidPlan,
					fmt.Sprintf("IN predicate on %s has no values", p.Column))
			}
		default:
			return errors.NewQueryError(errors.CodeInvalidPlan,
				fmt.Sprintf("unsupported operator %q", p.Operator))
		}
	}
	for _, agg := range q.Aggregates {
		switch agg.Func {
		case AggCount, AggSum, AggMin, AggMax, AggAvg:
		default:
			return errors.NewQueryError(errors.CodeInvalidPlan,
				fmt.Sprintf("unsupported aggregate %q", agg.Func))
		}
		if agg.Column != "" && !schema.HasColumn(agg.Column) {
			return unknownColumn(agg.Column)
		}
		if agg.Column == "" && agg.Func != AggCount {
			return errors.NewQueryError(errors.CodeInvalidPlan,
				fmt.Sprintf("%s requires a column argument", agg.Func))
		}
	}

	outputs := make(map[string]bool)
	for _, col := range q.OutputColumns() {
		outputs[col] = true
	}
	for _, ob := range q.OrderBy {
		if !outputs[ob.Column] {
			return errors.NewQueryError(errors.CodeInvalidPlan,
				fmt.Sprintf("ORDER BY column %q is not in the output", ob.Column))
		}
	}

	if q.Limit != nil && *q.Limit < 0 {
		return errors.NewQueryError(errors.CodeInvalidPlan, "negative LIMIT")
	}
	if q.Offset < 0 {
		return errors.NewQueryError(errors.CodeInvalidPlan, "negative OFFSET")
	}
	return nil
}

func unknownColumn(col string) error {
	return errors.NewQueryError(errors.CodeUnknownColumn,
		fmt.Sprintf("unknown column %q", col))
}

// CatalogPredicates converts the plan's predicates into catalog pruning
// predicates. The catalog ignores columns it has no statistics for.
func (q *Query) CatalogPredicates() []catalog.Predicate {
	preds := make([]catalog.Predicate, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		preds = append(preds, catalog.Predicate{
			Column:   p.Column,
			Operator: p.Operator,
			Value:    p.Value,
			Values:   p.Values,
		})
	}
	return preds
}

// SelectAll returns a plan projecting every base table column.
func SelectAll() *Query {
	return &Query{Projection: types.BaseSchema().ColumnNames()}
}
