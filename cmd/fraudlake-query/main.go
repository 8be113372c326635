// Package main implements the fraudlake-query tool.
// It builds a query plan from flags, runs it across the warehouse
// segments, and prints the result as a table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/fraudlake/fraudlake/internal/app"
	"github.com/fraudlake/fraudlake/internal/config"
	"github.com/fraudlake/fraudlake/internal/query"
)

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var (
		configFile string
		dataDir    string
		columns    string
		groupBy    string
		orderBy    string
		limit      int64
		offset     int64
		showStats  bool
		wheres     stringList
		aggs       stringList
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&columns, "columns", "", "Comma-separated projection (default: all columns)")
	flag.Var(&wheres, "where", "Predicate, e.g. 'tx_type=TRANSFER', 'amount>=100', 'tx_type in CASH_IN,CASH_OUT' (repeatable)")
	flag.Var(&aggs, "agg", "Aggregate, e.g. 'count', 'sum(amount)', 'avg(amount):mean' (repeatable)")
	flag.StringVar(&groupBy, "group-by", "", "Comma-separated grouping columns (requires -agg)")
	flag.StringVar(&orderBy, "order-by", "", "Comma-separated ordering, e.g. 'amount desc,tx_id'")
	flag.Int64Var(&limit, "limit", -1, "Maximum rows to return")
	flag.Int64Var(&offset, "offset", 0, "Rows to skip")
	flag.BoolVar(&showStats, "stats", false, "Print execution statistics")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fraudlake-query [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fraudlake-query -where 'is_fraud=1' -order-by 'amount desc' -limit 10\n")
		fmt.Fprintf(os.Stderr, "  fraudlake-query -group-by tx_type -agg count -agg 'sum(amount)'\n")
	}
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dataDir != "" {
		cfg.SetDataDir(dataDir)
	}

	q, err := buildPlan(columns, wheres, aggs, groupBy, orderBy, limit, offset)
	if err != nil {
		log.Fatalf("Invalid query: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	result, err := a.Executor.Execute(ctx, q)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	printResult(result.Columns, result.Rows)
	if showStats {
		fmt.Printf("\n%d rows, scanned %d segments (%d pruned, %d rows) in %dms\n",
			len(result.Rows), result.Stats.SegmentsScanned, result.Stats.SegmentsPruned,
			result.Stats.RowsScanned, result.Stats.ExecutionTimeMs)
	}
}

// buildPlan assembles a query plan from the flag values.
func buildPlan(columns string, wheres, aggs []string, groupBy, orderBy string, limit, offset int64) (*query.Query, error) {
	q := &query.Query{Offset: offset}
	if limit >= 0 {
		q.Limit = &limit
	}

	for _, raw := range wheres {
		pred, err := parsePredicate(raw)
		if err != nil {
			return nil, err
		}
		q.Predicates = append(q.Predicates, pred)
	}
	for _, raw := range aggs {
		agg, err := parseAggregate(raw)
		if err != nil {
			return nil, err
		}
		q.Aggregates = append(q.Aggregates, agg)
	}
	if groupBy != "" {
		q.GroupBy = splitList(groupBy)
	}
	if orderBy != "" {
		for _, part := range splitList(orderBy) {
			ob := query.OrderBy{Column: part}
			if fields := strings.Fields(part); len(fields) == 2 {
				ob.Column = fields[0]
				ob.Desc = strings.EqualFold(fields[1], "desc")
			}
			q.OrderBy = append(q.OrderBy, ob)
		}
	}

	if len(q.Aggregates) == 0 {
		if columns == "" {
			q.Projection = query.SelectAll().Projection
		} else {
			q.Projection = splitList(columns)
		}
	} else if columns != "" {
		return nil, fmt.Errorf("-columns cannot be combined with -agg")
	}

	return q, nil
}

var operators = []string{">=", "<=", "!=", "=", ">", "<"}

// parsePredicate parses "column<op>value" or "column in v1,v2,...".
func parsePredicate(raw string) (query.Predicate, error) {
	if col, rest, ok := splitKeyword(raw, " in "); ok {
		var values []interface{}
		for _, v := range splitList(rest) {
			values = append(values, parseValue(v))
		}
		return query.Predicate{Column: col, Operator: "IN", Values: values}, nil
	}

	for _, op := range operators {
		if idx := strings.Index(raw, op); idx > 0 {
			col := strings.TrimSpace(raw[:idx])
			val := strings.TrimSpace(raw[idx+len(op):])
			return query.Predicate{Column: col, Operator: op, Value: parseValue(val)}, nil
		}
	}
	return query.Predicate{}, fmt.Errorf("cannot parse predicate %q", raw)
}

// parseAggregate parses "func", "func(column)" or "func(column):alias".
func parseAggregate(raw string) (query.Aggregate, error) {
	expr, alias, _ := strings.Cut(raw, ":")
	expr = strings.TrimSpace(expr)

	name, rest, hasArg := strings.Cut(expr, "(")
	agg := query.Aggregate{
		Func:  query.AggFunc(strings.ToUpper(strings.TrimSpace(name))),
		Alias: strings.TrimSpace(alias),
	}
	if hasArg {
		arg := strings.TrimSuffix(strings.TrimSpace(rest), ")")
		if arg != "*" {
			agg.Column = arg
		}
	}
	switch agg.Func {
	case query.AggCount, query.AggSum, query.AggMin, query.AggMax, query.AggAvg:
		return agg, nil
	}
	return query.Aggregate{}, fmt.Errorf("cannot parse aggregate %q", raw)
}

// parseValue types a literal: integer, then float, then string.
func parseValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return strings.Trim(s, `'"`)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitKeyword splits raw around a case-insensitive keyword.
func splitKeyword(raw, keyword string) (string, string, bool) {
	idx := strings.Index(strings.ToLower(raw), keyword)
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(keyword):]), true
}

// printResult renders the rows with column headers.
func printResult(columns []string, rows [][]interface{}) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
