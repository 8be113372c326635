// Package aggregator computes and merges partial aggregates for query
// execution across partition segments. Each segment scan produces a
// partial; the merger combines partials into final values, keeping AVG
// correct by carrying sums and counts separately.
package aggregator

import (
	"fmt"

	"github.com/fraudlake/fraudlake/internal/query"
)

// Partial holds the running state of one aggregate over one segment.
type Partial struct {
	Func  query.AggFunc
	Count int64       // row count (COUNT and AVG)
	Sum   float64     // running sum (SUM and AVG)
	Min   interface{} // nil until a value is seen
	Max   interface{}
	IsSet bool
}

// NewPartial creates an empty partial for the given function.
func NewPartial(fn query.AggFunc) *Partial {
	return &Partial{Func: fn}
}

// Accumulate folds one value in. NULLs are ignored, as SQL aggregates do.
func (p *Partial) Accumulate(value interface{}) {
	if value == nil {
		return
	}

	switch p.Func {
	case query.AggCount:
		p.Count++
		p.IsSet = true

	case query.AggSum, query.AggAvg:
		if f, ok := toFloat(value); ok {
			p.Sum += f
			p.Count++
			p.IsSet = true
		}

	case query.AggMin:
		if !p.IsSet || compareValues(value, p.Min) < 0 {
			p.Min = value
		}
		p.Count++
		p.IsSet = true

	case query.AggMax:
		if !p.IsSet || compareValues(value, p.Max) > 0 {
			p.Max = value
		}
		p.Count++
		p.IsSet = true
	}
}

// Merge folds another partial of the same function into p.
func (p *Partial) Merge(other *Partial) {
	if !other.IsSet {
		return
	}

	switch p.Func {
	case query.AggCount:
		p.Count += other.Count

	case query.AggSum, query.AggAvg:
		p.Sum += other.Sum
		p.Count += other.Count

	case query.AggMin:
		if !p.IsSet || compareValues(other.Min, p.Min) < 0 {
			p.Min = other.Min
		}
		p.Count += other.Count

	case query.AggMax:
		if !p.IsSet || compareValues(other.Max, p.Max) > 0 {
			p.Max = other.Max
		}
		p.Count += other.Count
	}
	p.IsSet = true
}

// Result returns the final value. COUNT of nothing is 0; every other
// aggregate of nothing is NULL.
func (p *Partial) Result() interface{} {
	if !p.IsSet {
		if p.Func == query.AggCount {
			return int64(0)
		}
		return nil
	}

	switch p.Func {
	case query.AggCount:
		return p.Count
	case query.AggSum:
		return p.Sum
	case query.AggMin:
		return p.Min
	case query.AggMax:
		return p.Max
	case query.AggAvg:
		if p.Count == 0 {
			return nil
		}
		return p.Sum / float64(p.Count)
	}
	return nil
}

// PartialSet holds one partial per aggregate output column.
type PartialSet struct {
	Partials []*Partial
}

// NewPartialSet creates empty partials matching the plan's aggregates.
func NewPartialSet(aggs []query.Aggregate) *PartialSet {
	partials := make([]*Partial, len(aggs))
	for i, agg := range aggs {
		partials[i] = NewPartial(agg.Func)
	}
	return &PartialSet{Partials: partials}
}

// AccumulateRow folds one scanned row into the set. colIndices maps each
// aggregate's argument to its index in the row; -1 means COUNT(*).
func (s *PartialSet) AccumulateRow(row []interface{}, colIndices []int) {
	for i, p := range s.Partials {
		idx := colIndices[i]
		if idx < 0 {
			p.Accumulate(int64(1))
		} else if idx < len(row) {
			p.Accumulate(row[idx])
		}
	}
}

// Merge folds another set into this one.
func (s *PartialSet) Merge(other *PartialSet) {
	for i, p := range s.Partials {
		if i < len(other.Partials) {
			p.Merge(other.Partials[i])
		}
	}
}

// Results returns the final values for all aggregates in the set.
func (s *PartialSet) Results() []interface{} {
	results := make([]interface{}, len(s.Partials))
	for i, p := range s.Partials {
		results[i] = p.Result()
	}
	return results
}

// ResolveColumnIndices maps each aggregate's argument column to an index
// in the scanned columns. COUNT(*) maps to -1.
func ResolveColumnIndices(aggs []query.Aggregate, columns []string) []int {
	colMap := make(map[string]int, len(columns))
	for i, c := range columns {
		colMap[c] = i
	}

	indices := make([]int, len(aggs))
	for i, agg := range aggs {
		if agg.Column == "" {
			indices[i] = -1
			continue
		}
		if idx, ok := colMap[agg.Column]; ok {
			indices[i] = idx
		} else {
			indices[i] = -1
		}
	}
	return indices
}

// toFloat converts a scanned value to float64 for numeric aggregation.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// compareValues compares two values for MIN/MAX.
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	fa, aOk := toFloat(a)
	fb, bOk := toFloat(b)
	if aOk && bOk {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if !aStr {
		sa = fmt.Sprintf("%v", a)
	}
	if !bStr {
		sb = fmt.Sprintf("%v", b)
	}
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
