package partition

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fraudlake/fraudlake/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// TableName is the table stored inside every segment file.
const TableName = "transactions"

// SegmentInfo contains metadata about a created segment.
type SegmentInfo struct {
	SegmentID     string
	PartitionKey  types.PartitionKey
	Layout        types.Layout
	SQLitePath    string
	MetadataPath  string
	RowCount      int64
	FraudCount    int64
	SizeBytes     int64
	MinMaxStats   map[string]MinMax
	SchemaVersion int
	CreatedAt     time.Time
}

// Builder creates SQLite segment files from routed transaction batches.
type Builder struct {
	outputDir string
}

// NewBuilder creates a new segment builder writing under outputDir.
func NewBuilder(outputDir string) *Builder {
	return &Builder{outputDir: outputDir}
}

// Build creates a segment for the given partition key. Typed-layout
// segments store the partitioned schema (no tx_type column); flat-layout
// segments store the full base schema.
func (b *Builder) Build(ctx context.Context, txs []types.Transaction, key types.PartitionKey, layout types.Layout) (*SegmentInfo, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("partition: cannot build segment with no rows")
	}

	schema := types.BaseSchema()
	if layout == types.LayoutTyped {
		schema = types.PartitionedSchema()
	}

	validator := NewValidator(layout)
	if err := validator.Validate(txs, key); err != nil {
		return nil, fmt.Errorf("partition: validation failed: %w", err)
	}

	segmentID := fmt.Sprintf("%s:%s", key.Segment(), uuid.New().String()[:8])
	createdAt := time.Now()

	segDir := filepath.Join(b.outputDir, filepath.FromSlash(key.Segment()))
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, fmt.Errorf("partition: failed to create output directory: %w", err)
	}

	sqlitePath := filepath.Clean(filepath.Join(segDir, fmt.Sprintf("%s.sqlite", uuid.New().String()[:8])))

	db, err := sql.Open("sqlite3", sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to create SQLite database: %w", err)
	}
	defer db.Close()

	// WAL during the build, DELETE afterwards so the segment ships as one file
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("partition: failed to set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, CreateTableSQL(schema)); err != nil {
		return nil, fmt.Errorf("partition: failed to create %s table: %w", TableName, err)
	}
	for _, idx := range CreateIndexSQL(schema) {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return nil, fmt.Errorf("partition: failed to create index: %w", err)
		}
	}

	stmt, err := db.PrepareContext(ctx, insertSQL(schema))
	if err != nil {
		return nil, fmt.Errorf("partition: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	stats := NewStatsTracker()
	for _, tx := range txs {
		args := rowArgs(tx, layout)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("partition: failed to insert tx %d: %w", tx.TxID, err)
		}
		stats.Update(tx)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("partition: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("partition: failed to set journal mode to DELETE: %w", err)
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("partition: failed to close database: %w", err)
	}

	fileInfo, err := os.Stat(sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to stat SQLite file: %w", err)
	}

	return &SegmentInfo{
		SegmentID:     segmentID,
		PartitionKey:  key,
		Layout:        layout,
		SQLitePath:    sqlitePath,
		RowCount:      stats.RowCount(),
		FraudCount:    stats.FraudCount(),
		SizeBytes:     fileInfo.Size(),
		MinMaxStats:   stats.MinMaxStats(),
		SchemaVersion: schema.Version,
		CreatedAt:     createdAt,
	}, nil
}

// CreateTableSQL renders the CREATE TABLE statement for a segment schema.
func CreateTableSQL(schema types.Schema) string {
	var cols []string
	for _, c := range schema.Columns {
		col := fmt.Sprintf("%s %s", c.Name, c.Type)
		if c.PrimaryKey {
			col += " PRIMARY KEY"
		}
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n) WITHOUT ROWID", TableName, strings.Join(cols, ",\n\t"))
}

// CreateIndexSQL renders the CREATE INDEX statements for a segment schema.
func CreateIndexSQL(schema types.Schema) []string {
	stmts := make([]string, 0, len(schema.Indexes))
	for _, idx := range schema.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)",
			unique, idx.Name, TableName, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

// insertSQL renders the parameterized INSERT statement for a segment schema.
func insertSQL(schema types.Schema) string {
	names := schema.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		TableName, strings.Join(names, ", "), placeholders)
}

// rowArgs produces insert arguments in schema column order. The typed
// layout omits tx_type; the partition key carries it instead.
func rowArgs(tx types.Transaction, layout types.Layout) []interface{} {
	args := []interface{}{tx.TxID, tx.Step}
	if layout == types.LayoutFlat {
		args = append(args, tx.Type)
	}
	args = append(args,
		tx.Amount,
		tx.NameOrig, tx.OldBalanceOrig, tx.NewBalanceOrig,
		tx.NameDest, tx.OldBalanceDest, tx.NewBalanceDest,
		boolToInt(tx.IsFraud), boolToInt(tx.IsFlaggedFraud),
	)
	return args
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
