// Package observability tracks per-column predicate frequency and recent
// query executions for monitoring and pruning-effectiveness analysis.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats records which columns queries filter on, how effective
// pruning is, and how long executions take.
type QueryStats struct {
	mu            sync.RWMutex
	predicateFreq map[string]*ColumnStats
	executions    []ExecutionRecord
	maxExecutions int
	window        time.Duration
}

// ColumnStats holds predicate statistics for one column.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int
}

// ExecutionRecord captures one query execution.
type ExecutionRecord struct {
	SegmentsScanned int
	SegmentsPruned  int
	RowsScanned     int64
	Duration        time.Duration
	At              time.Time
}

// NewQueryStats creates a tracker. window bounds how long predicate
// entries are kept; older entries are dropped on Prune.
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		predicateFreq: make(map[string]*ColumnStats),
		maxExecutions: 256,
		window:        window,
	}
}

// RecordPredicate records one predicate access. Thread-safe, O(1).
func (q *QueryStats) RecordPredicate(column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, ok := q.predicateFreq[column]
	if !ok {
		stats = &ColumnStats{Column: column, Operators: make(map[string]int)}
		q.predicateFreq[column] = stats
	}
	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// RecordExecution records one query execution, keeping a bounded window
// of the most recent records.
func (q *QueryStats) RecordExecution(rec ExecutionRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec.At = time.Now()
	q.executions = append(q.executions, rec)
	if len(q.executions) > q.maxExecutions {
		q.executions = q.executions[len(q.executions)-q.maxExecutions:]
	}
}

// TopPredicates returns the n most filtered columns by frequency.
func (q *QueryStats) TopPredicates(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	all := make([]ColumnStats, 0, len(q.predicateFreq))
	for _, stats := range q.predicateFreq {
		ops := make(map[string]int, len(stats.Operators))
		for k, v := range stats.Operators {
			ops[k] = v
		}
		copied := *stats
		copied.Operators = ops
		all = append(all, copied)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Frequency != all[j].Frequency {
			return all[i].Frequency > all[j].Frequency
		}
		return all[i].Column < all[j].Column
	})

	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// PruningSummary aggregates recent executions.
type PruningSummary struct {
	Executions      int
	SegmentsScanned int
	SegmentsPruned  int
	RowsScanned     int64
	AvgDuration     time.Duration
}

// Summary returns aggregate statistics over the recorded executions.
func (q *QueryStats) Summary() PruningSummary {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var s PruningSummary
	var total time.Duration
	for _, rec := range q.executions {
		s.Executions++
		s.SegmentsScanned += rec.SegmentsScanned
		s.SegmentsPruned += rec.SegmentsPruned
		s.RowsScanned += rec.RowsScanned
		total += rec.Duration
	}
	if s.Executions > 0 {
		s.AvgDuration = total / time.Duration(s.Executions)
	}
	return s
}

// Prune drops predicate entries not seen within the window.
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-q.window)
	for col, stats := range q.predicateFreq {
		if stats.LastSeen.Before(cutoff) {
			delete(q.predicateFreq, col)
		}
	}
}
