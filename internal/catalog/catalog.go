// Package catalog manages segment and view metadata in catalog.db.
// The catalog is the schema & partition layer of the warehouse: it records
// which segments exist, their partition keys and min/max statistics, and
// which materialized views are current. It holds no row data itself.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/pkg/types"
	_ "github.com/mattn/go-sqlite3"
)

// SegmentRecord represents a segment row in the catalog.
type SegmentRecord struct {
	SegmentID     string
	PartitionKey  string
	Bucket        int
	Layout        types.Layout
	ObjectPath    string
	MetaPath      string
	MinTxID       *int64
	MaxTxID       *int64
	MinStep       *int64
	MaxStep       *int64
	MinAmount     *float64
	MaxAmount     *float64
	RowCount      int64
	FraudCount    int64
	SizeBytes     int64
	SchemaVersion int
	CreatedAt     time.Time
}

// ViewRecord represents a materialized view registration.
type ViewRecord struct {
	Name       string
	ObjectPath string
	RowCount   int64
	SizeBytes  int64
	BuiltAt    time.Time
}

// Predicate represents a pruning predicate against segment statistics.
type Predicate struct {
	Column   string
	Operator string // "=", "<", ">", "<=", ">=", "IN"
	Value    interface{}
	Values   []interface{} // for IN
}

// Catalog is the metadata store interface used by the loader, executor,
// materializer and verifier.
type Catalog interface {
	RegisterSegment(ctx context.Context, info *partition.SegmentInfo, objectPath, metaPath string) error
	FindSegments(ctx context.Context, predicates []Predicate) ([]*SegmentRecord, error)
	GetSegment(ctx context.Context, segmentID string) (*SegmentRecord, error)
	GetSegmentCount(ctx context.Context) (int64, error)
	DistinctPartitionKeys(ctx context.Context) ([]string, error)
	DeleteSegments(ctx context.Context, segmentIDs []string) error

	RegisterView(ctx context.Context, view *ViewRecord) error
	GetView(ctx context.Context, name string) (*ViewRecord, error)
	ListViews(ctx context.Context) ([]*ViewRecord, error)

	SetTableMeta(ctx context.Context, key, value string) error
	GetTableMeta(ctx context.Context, key string) (string, error)

	Close() error
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // write connection (single writer)
	readDB *sql.DB // read connection pool
	dbPath string
	mu     sync.Mutex // serializes writes

	insertSegmentStmt *sql.Stmt
}

// NewCatalog opens (or creates) a catalog database at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCatalog{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := c.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO segments (
			segment_id, partition_key, bucket, layout, object_path, meta_path,
			min_tx_id, max_tx_id, min_step, max_step, min_amount, max_amount,
			row_count, fraud_count, size_bytes, schema_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to prepare insert statement: %w", err)
	}
	c.insertSegmentStmt = insertStmt

	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RegisterSegment adds a new segment to the catalog.
func (c *SQLiteCatalog) RegisterSegment(ctx context.Context, info *partition.SegmentInfo, objectPath, metaPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var minTxID, maxTxID, minStep, maxStep interface{}
	var minAmount, maxAmount interface{}

	if mm, ok := info.MinMaxStats["tx_id"]; ok {
		minTxID, maxTxID = mm.Min, mm.Max
	}
	if mm, ok := info.MinMaxStats["step"]; ok {
		minStep, maxStep = mm.Min, mm.Max
	}
	if mm, ok := info.MinMaxStats["amount"]; ok {
		minAmount, maxAmount = mm.Min, mm.Max
	}

	_, err := c.insertSegmentStmt.ExecContext(ctx,
		info.SegmentID, info.PartitionKey.Value, info.PartitionKey.Bucket,
		string(info.Layout), objectPath, metaPath,
		minTxID, maxTxID, minStep, maxStep, minAmount, maxAmount,
		info.RowCount, info.FraudCount, info.SizeBytes,
		info.SchemaVersion, info.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to register segment %s: %w", info.SegmentID, err)
	}
	return nil
}

const segmentColumns = `segment_id, partition_key, bucket, layout, object_path, meta_path,
	min_tx_id, max_tx_id, min_step, max_step, min_amount, max_amount,
	row_count, fraud_count, size_bytes, schema_version, created_at`

// FindSegments returns segments matching the given predicates. Predicates
// on tx_type prune by partition key; predicates on tx_id, step, and amount
// prune against the stored min/max ranges. Unknown columns are ignored:
// pruning may only ever over-select, never drop a matching segment.
func (c *SQLiteCatalog) FindSegments(ctx context.Context, predicates []Predicate) ([]*SegmentRecord, error) {
	query, args := c.buildFindQuery(predicates)

	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to find segments: %w", err)
	}
	defer rows.Close()

	var records []*SegmentRecord
	for rows.Next() {
		rec, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetSegment retrieves a single segment by ID.
func (c *SQLiteCatalog) GetSegment(ctx context.Context, segmentID string) (*SegmentRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE segment_id = ?", segmentID)

	rec, err := scanSegmentRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("catalog: segment %s not found", segmentID)
	}
	return rec, err
}

// GetSegmentCount returns the total number of registered segments.
func (c *SQLiteCatalog) GetSegmentCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM segments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to count segments: %w", err)
	}
	return count, nil
}

// DistinctPartitionKeys returns all partition key values present.
func (c *SQLiteCatalog) DistinctPartitionKeys(ctx context.Context) ([]string, error) {
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT DISTINCT partition_key FROM segments ORDER BY partition_key")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list partition keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteSegments removes segment records (used when replacing a table build).
func (c *SQLiteCatalog) DeleteSegments(ctx context.Context, segmentIDs []string) error {
	if len(segmentIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(segmentIDs)), ", ")
	args := make([]interface{}, len(segmentIDs))
	for i, id := range segmentIDs {
		args[i] = id
	}

	_, err := c.db.ExecContext(ctx,
		"DELETE FROM segments WHERE segment_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("catalog: failed to delete segments: %w", err)
	}
	return nil
}

// RegisterView registers (or replaces) a materialized view build.
func (c *SQLiteCatalog) RegisterView(ctx context.Context, view *ViewRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO views (name, object_path, row_count, size_bytes, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			object_path = excluded.object_path,
			row_count = excluded.row_count,
			size_bytes = excluded.size_bytes,
			built_at = excluded.built_at`,
		view.Name, view.ObjectPath, view.RowCount, view.SizeBytes, view.BuiltAt.Unix())
	if err != nil {
		return fmt.Errorf("catalog: failed to register view %s: %w", view.Name, err)
	}
	return nil
}

// GetView retrieves a view registration by name.
func (c *SQLiteCatalog) GetView(ctx context.Context, name string) (*ViewRecord, error) {
	var view ViewRecord
	var builtAt int64

	err := c.readDB.QueryRowContext(ctx,
		"SELECT name, object_path, row_count, size_bytes, built_at FROM views WHERE name = ?", name).
		Scan(&view.Name, &view.ObjectPath, &view.RowCount, &view.SizeBytes, &builtAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("catalog: view %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to get view %s: %w", name, err)
	}

	view.BuiltAt = time.Unix(builtAt, 0)
	return &view, nil
}

// ListViews returns all registered views ordered by name.
func (c *SQLiteCatalog) ListViews(ctx context.Context) ([]*ViewRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT name, object_path, row_count, size_bytes, built_at FROM views ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list views: %w", err)
	}
	defer rows.Close()

	var views []*ViewRecord
	for rows.Next() {
		var view ViewRecord
		var builtAt int64
		if err := rows.Scan(&view.Name, &view.ObjectPath, &view.RowCount, &view.SizeBytes, &builtAt); err != nil {
			return nil, err
		}
		view.BuiltAt = time.Unix(builtAt, 0)
		views = append(views, &view)
	}
	return views, rows.Err()
}

// SetTableMeta stores a table metadata key (layout, bucket count, …).
func (c *SQLiteCatalog) SetTableMeta(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO table_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("catalog: failed to set table meta %s: %w", key, err)
	}
	return nil
}

// GetTableMeta retrieves a table metadata key. Returns empty string when
// the key is absent.
func (c *SQLiteCatalog) GetTableMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := c.readDB.QueryRowContext(ctx,
		"SELECT value FROM table_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: failed to get table meta %s: %w", key, err)
	}
	return value, nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if c.insertSegmentStmt != nil {
		c.insertSegmentStmt.Close()
	}
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

// buildFindQuery translates pruning predicates into SQL over the segments
// table. Only conjunctions are supported; each predicate narrows the result.
func (c *SQLiteCatalog) buildFindQuery(predicates []Predicate) (string, []interface{}) {
	query := "SELECT " + segmentColumns + " FROM segments"
	var clauses []string
	var args []interface{}

	for _, pred := range predicates {
		clause, clauseArgs := buildPredicateClause(pred)
		if clause == "" {
			continue
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY partition_key, bucket, segment_id"

	return query, args
}

// buildPredicateClause maps one predicate to a segment-pruning clause.
// tx_type maps to the partition key; flat-layout segments (key "all") are
// always kept because their rows carry the column and must be filtered at
// scan time instead.
func buildPredicateClause(pred Predicate) (string, []interface{}) {
	switch pred.Column {
	case types.PartitionColumn:
		switch pred.Operator {
		case "=":
			return "(partition_key = ? OR partition_key = ?)", []interface{}{pred.Value, types.FlatKey}
		case "IN":
			if len(pred.Values) == 0 {
				return "", nil
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
			args := append([]interface{}{}, pred.Values...)
			args = append(args, types.FlatKey)
			return "(partition_key IN (" + placeholders + ") OR partition_key = ?)", args
		}
		return "", nil

	case "tx_id", "step", "amount":
		minCol := "min_" + pred.Column
		maxCol := "max_" + pred.Column
		switch pred.Operator {
		case "=":
			// value within [min, max]
			return "(" + minCol + " IS NULL OR (? >= " + minCol + " AND ? <= " + maxCol + "))",
				[]interface{}{pred.Value, pred.Value}
		case ">", ">=":
			return "(" + maxCol + " IS NULL OR " + maxCol + " >= ?)", []interface{}{pred.Value}
		case "<", "<=":
			return "(" + minCol + " IS NULL OR " + minCol + " <= ?)", []interface{}{pred.Value}
		}
		return "", nil
	}

	// Columns without segment statistics cannot prune
	return "", nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSegment(rows *sql.Rows) (*SegmentRecord, error) {
	return scanSegmentFrom(rows)
}

func scanSegmentRow(row *sql.Row) (*SegmentRecord, error) {
	return scanSegmentFrom(row)
}

func scanSegmentFrom(s scanner) (*SegmentRecord, error) {
	var rec SegmentRecord
	var layout string
	var createdAt int64

	err := s.Scan(
		&rec.SegmentID, &rec.PartitionKey, &rec.Bucket, &layout,
		&rec.ObjectPath, &rec.MetaPath,
		&rec.MinTxID, &rec.MaxTxID, &rec.MinStep, &rec.MaxStep,
		&rec.MinAmount, &rec.MaxAmount,
		&rec.RowCount, &rec.FraudCount, &rec.SizeBytes,
		&rec.SchemaVersion, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Layout = types.Layout(layout)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}
