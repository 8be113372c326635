package executor

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/errors"
	"github.com/fraudlake/fraudlake/internal/observability"
	"github.com/fraudlake/fraudlake/internal/query"
	"github.com/fraudlake/fraudlake/internal/query/aggregator"
	"github.com/fraudlake/fraudlake/internal/storage"
)

// Result holds the merged output of one query execution.
type Result struct {
	Columns []string
	Rows    [][]interface{}
	Stats   ExecutionStats
}

// ExecutionStats contains execution metrics.
type ExecutionStats struct {
	SegmentsScanned int
	SegmentsPruned  int
	RowsScanned     int64
	ExecutionTimeMs int64
}

// Config configures the executor.
type Config struct {
	// Concurrency bounds parallel segment scans (default 8).
	Concurrency int

	// DownloadDir holds downloaded segment files.
	DownloadDir string

	// MaxCacheBytes bounds the downloaded-segment cache; 0 disables it.
	MaxCacheBytes int64

	PoolConfig PoolConfig
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   8,
		DownloadDir:   filepath.Join(os.TempDir(), "fraudlake-segments"),
		MaxCacheBytes: 1 << 30,
		PoolConfig:    DefaultPoolConfig(),
	}
}

// Executor runs query plans: it prunes the segment set, scans the
// survivors in parallel, and merges rows or partial aggregates into the
// final result.
type Executor struct {
	pruner      *query.Pruner
	store       storage.ObjectStorage
	pool        *ConnectionPool
	cache       *SegmentCache
	stats       *observability.QueryStats
	downloadDir string
	concurrency int
}

// New creates an executor. stats may be nil.
func New(pruner *query.Pruner, store storage.ObjectStorage, stats *observability.QueryStats, config Config) (*Executor, error) {
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.DownloadDir == "" {
		config.DownloadDir = DefaultConfig().DownloadDir
	}
	if err := os.MkdirAll(config.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("executor: failed to create download directory: %w", err)
	}

	var cache *SegmentCache
	if config.MaxCacheBytes > 0 {
		cache = NewSegmentCache(config.MaxCacheBytes)
	}

	return &Executor{
		pruner:      pruner,
		store:       store,
		pool:        NewConnectionPool(config.PoolConfig),
		cache:       cache,
		stats:       stats,
		downloadDir: config.DownloadDir,
		concurrency: config.Concurrency,
	}, nil
}

// segmentResult carries one segment's contribution to the merge.
type segmentResult struct {
	rows     [][]interface{}
	partials *aggregator.PartialSet
	groups   *aggregator.GroupSet
	scanned  int64
	err      error
}

// Execute runs a plan and returns the merged result.
func (e *Executor) Execute(ctx context.Context, q *query.Query) (*Result, error) {
	start := time.Now()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if e.stats != nil {
		for _, p := range q.Predicates {
			e.stats.RecordPredicate(p.Column, p.Operator)
		}
	}

	pruned, err := e.pruner.Prune(ctx, q)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCategoryQuery, errors.CodeSegmentScan, "pruning failed", err)
	}

	results := make([]*segmentResult, len(pruned.Segments))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, rec := range pruned.Segments {
		wg.Add(1)
		go func(idx int, rec *catalog.SegmentRecord) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = &segmentResult{err: ctx.Err()}
				return
			}

			results[idx] = e.scanSegment(ctx, q, rec)
		}(i, rec)
	}
	wg.Wait()

	result, err := e.merge(q, results)
	if err != nil {
		return nil, err
	}

	result.Stats.SegmentsScanned = len(pruned.Segments)
	result.Stats.SegmentsPruned = pruned.PrunedCount()
	result.Stats.ExecutionTimeMs = time.Since(start).Milliseconds()

	if e.stats != nil {
		e.stats.RecordExecution(observability.ExecutionRecord{
			SegmentsScanned: result.Stats.SegmentsScanned,
			SegmentsPruned:  result.Stats.SegmentsPruned,
			RowsScanned:     result.Stats.RowsScanned,
			Duration:        time.Since(start),
		})
	}
	return result, nil
}

// merge combines per-segment results according to the plan shape.
func (e *Executor) merge(q *query.Query, results []*segmentResult) (*Result, error) {
	out := &Result{Columns: q.OutputColumns()}

	var partials *aggregator.PartialSet
	var groups *aggregator.GroupSet
	if q.IsAggregate() {
		partials = aggregator.NewPartialSet(q.Aggregates)
		groups = aggregator.NewGroupSet(q.Aggregates)
	}

	var rows [][]interface{}
	for _, sr := range results {
		if sr == nil {
			continue
		}
		if sr.err != nil {
			return nil, errors.Wrap(errors.ErrCategoryQuery, errors.CodeSegmentScan, "segment scan failed", sr.err)
		}
		out.Stats.RowsScanned += sr.scanned

		switch {
		case sr.groups != nil:
			groups.Merge(sr.groups)
		case sr.partials != nil:
			partials.Merge(sr.partials)
		default:
			rows = append(rows, sr.rows...)
		}
	}

	switch {
	case q.IsAggregate() && len(q.GroupBy) > 0:
		rows = groups.Rows()
		aggregator.SortRows(rows, out.Columns, q.OrderBy)
		rows = aggregator.ApplyLimit(rows, q.Limit, q.Offset)

	case q.IsAggregate():
		rows = [][]interface{}{partials.Results()}

	default:
		aggregator.SortRows(rows, out.Columns, q.OrderBy)
		rows = aggregator.ApplyLimit(rows, q.Limit, q.Offset)
	}

	if rows == nil {
		rows = [][]interface{}{}
	}
	out.Rows = rows
	return out, nil
}

// scanSegment downloads a segment if needed and runs the per-segment
// statement, producing rows or partial aggregates.
func (e *Executor) scanSegment(ctx context.Context, q *query.Query, rec *catalog.SegmentRecord) *segmentResult {
	localPath, err := e.ensureSegmentLocal(ctx, rec)
	if err != nil {
		return &segmentResult{err: fmt.Errorf("segment %s: %w", rec.SegmentID, err)}
	}
	return e.scanOpenSegment(ctx, q, rec, localPath)
}

// ensureSegmentLocal downloads a segment unless cached or already on disk.
func (e *Executor) ensureSegmentLocal(ctx context.Context, rec *catalog.SegmentRecord) (string, error) {
	if e.cache != nil {
		if cached := e.cache.Get(rec.ObjectPath); cached != "" {
			return cached, nil
		}
	}

	localPath := filepath.Join(e.downloadDir, filepath.FromSlash(rec.ObjectPath))
	if info, err := os.Stat(localPath); err == nil && info.Size() > 0 {
		if e.cache != nil {
			e.cache.Put(rec.ObjectPath, localPath)
		}
		return localPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", err
	}
	if err := e.store.Download(ctx, rec.ObjectPath, localPath); err != nil {
		return "", err
	}

	if e.cache != nil {
		e.cache.Put(rec.ObjectPath, localPath)
	}
	return localPath, nil
}

// ExecuteLocal runs a plan against local segment files directly, without
// the catalog or file store. The records describe layout and partition
// keys; paths maps segment IDs to local files. Used by verification.
func (e *Executor) ExecuteLocal(ctx context.Context, q *query.Query, recs []*catalog.SegmentRecord, paths map[string]string) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	results := make([]*segmentResult, len(recs))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, rec := range recs {
		if !query.SegmentTypeMatches(q, rec) {
			continue
		}
		wg.Add(1)
		go func(idx int, rec *catalog.SegmentRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			local := paths[rec.SegmentID]
			results[idx] = e.scanLocal(ctx, q, rec, local)
		}(i, rec)
	}
	wg.Wait()

	return e.merge(q, results)
}

func (e *Executor) scanLocal(ctx context.Context, q *query.Query, rec *catalog.SegmentRecord, localPath string) *segmentResult {
	if localPath == "" {
		return &segmentResult{err: fmt.Errorf("segment %s: no local path", rec.SegmentID)}
	}
	if _, err := os.Stat(localPath); err != nil {
		return &segmentResult{err: fmt.Errorf("segment %s: %w", rec.SegmentID, err)}
	}
	return e.scanOpenSegment(ctx, q, rec, localPath)
}

// scanOpenSegment runs the per-segment statement against a local file
// and folds the rows into a segment result.
func (e *Executor) scanOpenSegment(ctx context.Context, q *query.Query, rec *catalog.SegmentRecord, localPath string) *segmentResult {
	sr := &segmentResult{}

	db, err := e.pool.Get(ctx, localPath)
	if err != nil {
		sr.err = fmt.Errorf("segment %s: %w", rec.SegmentID, err)
		return sr
	}
	defer e.pool.Release(localPath)

	stmt, args := query.BuildSegmentSQL(q, rec)
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		sr.err = fmt.Errorf("segment %s: %w", rec.SegmentID, err)
		return sr
	}
	defer rows.Close()

	return e.collectRows(q, rec, rows, sr)
}

func (e *Executor) collectRows(q *query.Query, rec *catalog.SegmentRecord, rows *sql.Rows, sr *segmentResult) *segmentResult {
	scanCols := q.ScanColumns()
	var groupIndices, aggIndices []int
	if q.IsAggregate() {
		aggIndices = aggregator.ResolveColumnIndices(q.Aggregates, scanCols)
		if len(q.GroupBy) > 0 {
			groupIndices = aggregator.ResolveGroupIndices(q.GroupBy, scanCols)
			sr.groups = aggregator.NewGroupSet(q.Aggregates)
		} else {
			sr.partials = aggregator.NewPartialSet(q.Aggregates)
		}
	}

	values := make([]interface{}, len(scanCols))
	ptrs := make([]interface{}, len(scanCols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			sr.err = fmt.Errorf("segment %s: %w", rec.SegmentID, err)
			return sr
		}
		sr.scanned++

		row := make([]interface{}, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[i] = v
		}

		switch {
		case sr.groups != nil:
			sr.groups.AccumulateRow(row, groupIndices, aggIndices)
		case sr.partials != nil:
			sr.partials.AccumulateRow(row, aggIndices)
		default:
			sr.rows = append(sr.rows, row)
		}

		for i := range values {
			values[i] = nil
		}
	}
	if err := rows.Err(); err != nil {
		sr.err = fmt.Errorf("segment %s: %w", rec.SegmentID, err)
	}
	return sr
}

// Close releases the pool and drops cached downloads.
func (e *Executor) Close() error {
	if e.cache != nil {
		e.cache.Clear()
	}
	return e.pool.Close()
}
