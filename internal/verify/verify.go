// Package verify checks the warehouse invariants: view results must
// match fresh computations over the base table, partitioning must not
// change query results, and the file store must hold exactly the objects
// the catalog knows about.
package verify

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/load"
	"github.com/fraudlake/fraudlake/internal/query"
	"github.com/fraudlake/fraudlake/internal/query/executor"
	"github.com/fraudlake/fraudlake/internal/storage"
	"github.com/fraudlake/fraudlake/internal/views"
)

// CheckResult is the outcome of one verification check.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// Report collects the results of a verification run.
type Report struct {
	Checks []CheckResult
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, passed bool, format string, args ...interface{}) {
	r.Checks = append(r.Checks, CheckResult{
		Name:   name,
		Passed: passed,
		Detail: fmt.Sprintf(format, args...),
	})
	status := "ok"
	if !passed {
		status = "FAILED"
	}
	log.Printf("verify: %s: %s (%s)", name, status, fmt.Sprintf(format, args...))
}

// Verifier runs the warehouse consistency checks.
type Verifier struct {
	executor     *executor.Executor
	materializer *views.Materializer
	catalog      catalog.Catalog
	store        storage.ObjectStorage
}

// NewVerifier creates a verifier over the given components.
func NewVerifier(exec *executor.Executor, m *views.Materializer, cat catalog.Catalog, store storage.ObjectStorage) *Verifier {
	return &Verifier{
		executor:     exec,
		materializer: m,
		catalog:      cat,
		store:        store,
	}
}

// Run executes all checks and returns the report. Checks that error out
// are recorded as failures rather than aborting the run.
func (v *Verifier) Run(ctx context.Context) *Report {
	report := &Report{}
	v.checkFraudViewCount(ctx, report)
	v.checkTopFraudView(ctx, report)
	v.checkTypeCounts(ctx, report)
	v.checkPartitionEquivalence(ctx, report)
	v.checkOrphanObjects(ctx, report)
	return report
}

// checkPartitionEquivalence verifies that filtering by tx_type through
// the pruning path returns exactly the rows a full scan attributes to
// that type. Partitioning may only change scan cost, never results.
func (v *Verifier) checkPartitionEquivalence(ctx context.Context, report *Report) {
	const name = "partition_equivalence"

	full := query.SelectAll()
	full.OrderBy = []query.OrderBy{{Column: "tx_id"}}
	all, err := v.executor.Execute(ctx, full)
	if err != nil {
		report.add(name, false, "full scan failed: %v", err)
		return
	}
	typeIdx := -1
	for i, c := range all.Columns {
		if c == "tx_type" {
			typeIdx = i
		}
	}

	byType := make(map[string][][]interface{})
	for _, row := range all.Rows {
		typ := row[typeIdx].(string)
		byType[typ] = append(byType[typ], row)
	}

	for typ, want := range byType {
		q := query.SelectAll()
		q.Predicates = []query.Predicate{{Column: "tx_type", Operator: "=", Value: typ}}
		q.OrderBy = []query.OrderBy{{Column: "tx_id"}}
		res, err := v.executor.Execute(ctx, q)
		if err != nil {
			report.add(name, false, "scan for %s failed: %v", typ, err)
			return
		}
		if !rowsEqual(res.Rows, want) {
			report.add(name, false, "type %s: pruned scan returned %d rows, full scan attributes %d",
				typ, len(res.Rows), len(want))
			return
		}
	}
	report.add(name, true, "%d types match", len(byType))
}

// checkFraudViewCount verifies the fraud view's row count equals a fresh
// COUNT(*) over the base table with the fraud predicate.
func (v *Verifier) checkFraudViewCount(ctx context.Context, report *Report) {
	const name = "fraud_view_count"

	_, viewRows, err := v.materializer.ReadRows(ctx, views.FraudTransactions)
	if err != nil {
		report.add(name, false, "failed to read view: %v", err)
		return
	}

	q := &query.Query{
		Aggregates: []query.Aggregate{{Func: query.AggCount, Alias: "n"}},
		Predicates: []query.Predicate{{Column: "is_fraud", Operator: "=", Value: 1}},
	}
	res, err := v.executor.Execute(ctx, q)
	if err != nil {
		report.add(name, false, "base table count failed: %v", err)
		return
	}

	baseCount := res.Rows[0][0].(int64)
	passed := int64(len(viewRows)) == baseCount
	report.add(name, passed, "view=%d base=%d", len(viewRows), baseCount)
}

// checkTopFraudView verifies the top view holds at most 100 rows, all
// fraudulent, in non-increasing amount order, and matches a fresh top-k
// computation.
func (v *Verifier) checkTopFraudView(ctx context.Context, report *Report) {
	const name = "top_fraud_view"

	cols, viewRows, err := v.materializer.ReadRows(ctx, views.TopFraudByAmount)
	if err != nil {
		report.add(name, false, "failed to read view: %v", err)
		return
	}

	if len(viewRows) > views.TopFraudLimit {
		report.add(name, false, "view has %d rows, limit is %d", len(viewRows), views.TopFraudLimit)
		return
	}

	amountIdx, fraudIdx := -1, -1
	for i, c := range cols {
		switch c {
		case "amount":
			amountIdx = i
		case "is_fraud":
			fraudIdx = i
		}
	}
	prev := -1.0
	for i, row := range viewRows {
		if row[fraudIdx] != int64(1) {
			report.add(name, false, "row %d is not fraudulent", i)
			return
		}
		amount := row[amountIdx].(float64)
		if i > 0 && amount > prev {
			report.add(name, false, "amounts not non-increasing at row %d", i)
			return
		}
		prev = amount
	}

	def, _ := views.ByName(views.TopFraudByAmount)
	fresh, err := v.executor.Execute(ctx, def.Plan())
	if err != nil {
		report.add(name, false, "fresh top-k failed: %v", err)
		return
	}
	if !rowsEqual(fresh.Rows, viewRows) {
		report.add(name, false, "view diverges from fresh computation")
		return
	}
	report.add(name, true, "%d rows", len(viewRows))
}

// checkTypeCounts verifies fraud and legit counts sum to the per-type
// total, and that totals match a fresh group-by on the base table.
func (v *Verifier) checkTypeCounts(ctx context.Context, report *Report) {
	const name = "type_counts"

	_, viewRows, err := v.materializer.ReadRows(ctx, views.TypeCounts)
	if err != nil {
		report.add(name, false, "failed to read view: %v", err)
		return
	}

	for _, row := range viewRows {
		total, fraud, legit := row[1].(int64), row[2].(int64), row[3].(int64)
		if fraud+legit != total {
			report.add(name, false, "%v: fraud %d + legit %d != total %d", row[0], fraud, legit, total)
			return
		}
	}

	def, _ := views.ByName(views.TypeCounts)
	fresh, err := v.executor.Execute(ctx, def.Plan())
	if err != nil {
		report.add(name, false, "fresh group-by failed: %v", err)
		return
	}
	if len(fresh.Rows) != len(viewRows) {
		report.add(name, false, "view has %d types, base has %d", len(viewRows), len(fresh.Rows))
		return
	}
	for i, row := range fresh.Rows {
		if def.Transform != nil {
			row = def.Transform(row)
		}
		if !reflect.DeepEqual(row, viewRows[i]) {
			report.add(name, false, "type %v diverges: view=%v base=%v", viewRows[i][0], viewRows[i], row)
			return
		}
	}
	report.add(name, true, "%d types", len(viewRows))
}

// checkOrphanObjects compares the file store against the catalog: every
// registered segment and view artifact must exist, and no unregistered
// objects may sit under the segment or view prefixes.
func (v *Verifier) checkOrphanObjects(ctx context.Context, report *Report) {
	const name = "orphan_objects"

	registered := make(map[string]bool)
	segs, err := v.catalog.FindSegments(ctx, nil)
	if err != nil {
		report.add(name, false, "failed to list segments: %v", err)
		return
	}
	for _, s := range segs {
		registered[s.ObjectPath] = true
		registered[s.MetaPath] = true
	}
	viewRecs, err := v.catalog.ListViews(ctx)
	if err != nil {
		report.add(name, false, "failed to list views: %v", err)
		return
	}
	for _, vr := range viewRecs {
		registered[vr.ObjectPath] = true
	}

	var missing, orphans []string
	for path := range registered {
		ok, err := v.store.Exists(ctx, path)
		if err != nil || !ok {
			missing = append(missing, path)
		}
	}

	for _, prefix := range []string{load.SegmentPrefix, views.ViewPrefix} {
		objects, err := v.store.ListObjects(ctx, prefix)
		if err != nil {
			report.add(name, false, "failed to list %s objects: %v", prefix, err)
			return
		}
		for _, obj := range objects {
			if !registered[obj] && !isReplacedArtifact(prefix, obj) {
				orphans = append(orphans, obj)
			}
		}
	}

	if len(missing) > 0 || len(orphans) > 0 {
		report.add(name, false, "missing=%s orphans=%s",
			strings.Join(missing, ","), strings.Join(orphans, ","))
		return
	}
	report.add(name, true, "%d objects accounted for", len(registered))
}

// isReplacedArtifact reports whether an unregistered view object is a
// superseded artifact from an earlier rebuild. Those are garbage, not
// corruption; they are reclaimed by Sweep. Only objects shaped like
// "views/<known view>/<artifact>.sqlite" qualify; anything else under
// the view prefix is a genuine orphan.
func isReplacedArtifact(prefix, obj string) bool {
	if prefix != views.ViewPrefix {
		return false
	}
	rest := strings.TrimPrefix(obj, views.ViewPrefix+"/")
	name, base, found := strings.Cut(rest, "/")
	if !found || strings.Contains(base, "/") || !strings.HasSuffix(base, ".sqlite") {
		return false
	}
	_, known := views.ByName(name)
	return known
}

// Sweep deletes superseded view artifacts the catalog no longer points
// at. Returns the deleted object paths.
func (v *Verifier) Sweep(ctx context.Context) ([]string, error) {
	current := make(map[string]bool)
	viewRecs, err := v.catalog.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	for _, vr := range viewRecs {
		current[vr.ObjectPath] = true
	}

	objects, err := v.store.ListObjects(ctx, views.ViewPrefix)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, obj := range objects {
		if current[obj] {
			continue
		}
		if err := v.store.Delete(ctx, obj); err != nil {
			return deleted, err
		}
		deleted = append(deleted, obj)
	}
	return deleted, nil
}

// rowsEqual compares two row sets positionally.
func rowsEqual(a, b [][]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
