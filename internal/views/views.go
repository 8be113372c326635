// Package views defines and materializes the derived views of the
// transactions table. Each view is a fixed query plan whose result is
// written to its own SQLite artifact in the file store and registered in
// the catalog. Views are rebuilt explicitly; a rebuild replaces the
// previous artifact atomically at the catalog level.
package views

import (
	"github.com/fraudlake/fraudlake/internal/query"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// View names.
const (
	FraudTransactions = "fraud_transactions"
	TopFraudByAmount  = "top_fraud_by_amount"
	TypeCounts        = "type_counts"
)

// TopFraudLimit bounds the top_fraud_by_amount view.
const TopFraudLimit = 100

// Definition describes one materialized view.
type Definition struct {
	Name    string
	Columns []types.ColumnDef

	// Plan builds the query the view materializes.
	Plan func() *query.Query

	// Transform optionally rewrites each result row into artifact form.
	Transform func(row []interface{}) []interface{}

	// ReadOrder lists the SQL order terms that reproduce the view's
	// ordering when reading the artifact back.
	ReadOrder []string
}

// All returns every view definition in rebuild order.
func All() []Definition {
	return []Definition{
		fraudTransactionsDef(),
		topFraudByAmountDef(),
		typeCountsDef(),
	}
}

// ByName returns the definition for a view name, or false.
func ByName(name string) (Definition, bool) {
	for _, def := range All() {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// fraudTransactionsDef is the fraud-only subset of the table, full width,
// ordered by tx_id so rebuilds are deterministic.
func fraudTransactionsDef() Definition {
	return Definition{
		Name:    FraudTransactions,
		Columns: types.BaseSchema().Columns,
		Plan: func() *query.Query {
			q := query.SelectAll()
			q.Predicates = []query.Predicate{{Column: "is_fraud", Operator: "=", Value: 1}}
			q.OrderBy = []query.OrderBy{{Column: "tx_id"}}
			return q
		},
		ReadOrder: []string{"tx_id"},
	}
}

// topFraudByAmountDef is the 100 largest fraudulent transactions, ties
// broken by tx_id.
func topFraudByAmountDef() Definition {
	return Definition{
		Name:    TopFraudByAmount,
		Columns: types.BaseSchema().Columns,
		Plan: func() *query.Query {
			limit := int64(TopFraudLimit)
			q := query.SelectAll()
			q.Predicates = []query.Predicate{{Column: "is_fraud", Operator: "=", Value: 1}}
			q.OrderBy = []query.OrderBy{
				{Column: "amount", Desc: true},
				{Column: "tx_id"},
			}
			q.Limit = &limit
			return q
		},
		ReadOrder: []string{"amount DESC", "tx_id"},
	}
}

// typeCountsDef counts transactions per type, split into fraud and legit.
func typeCountsDef() Definition {
	return Definition{
		Name: TypeCounts,
		Columns: []types.ColumnDef{
			{Name: "tx_type", Type: "TEXT", PrimaryKey: true},
			{Name: "total_count", Type: "INTEGER"},
			{Name: "fraud_count", Type: "INTEGER"},
			{Name: "legit_count", Type: "INTEGER"},
		},
		Plan: func() *query.Query {
			return &query.Query{
				GroupBy: []string{"tx_type"},
				Aggregates: []query.Aggregate{
					{Func: query.AggCount, Alias: "total_count"},
					{Func: query.AggSum, Column: "is_fraud", Alias: "fraud_count"},
				},
				OrderBy: []query.OrderBy{
					{Column: "total_count", Desc: true},
					{Column: "tx_type"},
				},
			}
		},
		// the plan yields (tx_type, total, fraud); legit is derived
		Transform: func(row []interface{}) []interface{} {
			total := asInt64(row[1])
			fraud := asInt64(row[2])
			return []interface{}{row[0], total, fraud, total - fraud}
		},
		ReadOrder: []string{"total_count DESC", "tx_type"},
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case nil:
		return 0
	}
	return 0
}
