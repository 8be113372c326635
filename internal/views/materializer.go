package views

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/errors"
	"github.com/fraudlake/fraudlake/internal/query/executor"
	"github.com/fraudlake/fraudlake/internal/storage"
)

// ViewPrefix is the object-store prefix for view artifacts.
const ViewPrefix = "views"

// Materializer rebuilds view artifacts from the base table.
type Materializer struct {
	executor  *executor.Executor
	store     storage.ObjectStorage
	catalog   catalog.Catalog
	outputDir string
}

// NewMaterializer creates a materializer writing artifacts under outputDir
// before upload.
func NewMaterializer(exec *executor.Executor, store storage.ObjectStorage, cat catalog.Catalog, outputDir string) *Materializer {
	return &Materializer{
		executor:  exec,
		store:     store,
		catalog:   cat,
		outputDir: outputDir,
	}
}

// RebuildAll rebuilds every view.
func (m *Materializer) RebuildAll(ctx context.Context) error {
	for _, def := range All() {
		if _, err := m.Rebuild(ctx, def.Name); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild executes a view's plan against the base table, writes a fresh
// artifact, uploads it and swaps the catalog registration.
func (m *Materializer) Rebuild(ctx context.Context, name string) (*catalog.ViewRecord, error) {
	def, ok := ByName(name)
	if !ok {
		return nil, errors.NewViewError(errors.CodeViewNotFound,
			fmt.Sprintf("no view named %q", name), nil)
	}

	result, err := m.executor.Execute(ctx, def.Plan())
	if err != nil {
		return nil, errors.NewViewError(errors.CodeRebuildFailed,
			fmt.Sprintf("query for view %s failed", name), err)
	}

	localPath, err := m.writeArtifact(ctx, def, result.Rows)
	if err != nil {
		return nil, errors.NewViewError(errors.CodeRebuildFailed,
			fmt.Sprintf("artifact for view %s failed", name), err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, errors.NewViewError(errors.CodeRebuildFailed,
			fmt.Sprintf("artifact for view %s unreadable", name), err)
	}

	objectPath := path.Join(ViewPrefix, name, filepath.Base(localPath))
	if err := m.store.Upload(ctx, localPath, objectPath); err != nil {
		return nil, errors.NewViewError(errors.CodeRebuildFailed,
			fmt.Sprintf("upload for view %s failed", name), err)
	}

	rec := &catalog.ViewRecord{
		Name:       name,
		ObjectPath: objectPath,
		RowCount:   int64(len(result.Rows)),
		SizeBytes:  info.Size(),
		BuiltAt:    time.Now(),
	}
	if err := m.catalog.RegisterView(ctx, rec); err != nil {
		return nil, errors.NewViewError(errors.CodeRebuildFailed,
			fmt.Sprintf("registration for view %s failed", name), err)
	}

	log.Printf("views: rebuilt %s (%d rows, %d bytes)", name, rec.RowCount, rec.SizeBytes)
	return rec, nil
}

// writeArtifact writes the view rows into a single-file SQLite database.
func (m *Materializer) writeArtifact(ctx context.Context, def Definition, rows [][]interface{}) (string, error) {
	dir := filepath.Join(m.outputDir, def.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	localPath := filepath.Join(dir, fmt.Sprintf("%s.sqlite", uuid.New().String()[:8]))

	db, err := sql.Open("sqlite3", localPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, createViewTableSQL(def)); err != nil {
		return "", err
	}

	stmt, err := db.PrepareContext(ctx, insertViewSQL(def))
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, row := range rows {
		if def.Transform != nil {
			row = def.Transform(row)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return "", err
		}
	}

	// single-file artifact, same as segments
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return "", err
	}
	if err := db.Close(); err != nil {
		return "", err
	}
	return localPath, nil
}

func createViewTableSQL(def Definition) string {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		col := fmt.Sprintf("%s %s", c.Name, c.Type)
		if c.PrimaryKey {
			col += " PRIMARY KEY"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", def.Name, strings.Join(cols, ",\n\t"))
}

func insertViewSQL(def Definition) string {
	names := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		names[i] = c.Name
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		def.Name, strings.Join(names, ", "), placeholders)
}

// ReadRows downloads a view's current artifact and returns all its rows
// in the view's defined order.
func (m *Materializer) ReadRows(ctx context.Context, name string) ([]string, [][]interface{}, error) {
	def, ok := ByName(name)
	if !ok {
		return nil, nil, errors.NewViewError(errors.CodeViewNotFound,
			fmt.Sprintf("no view named %q", name), nil)
	}

	rec, err := m.catalog.GetView(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	localPath := filepath.Join(m.outputDir, "read", filepath.Base(rec.ObjectPath))
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return nil, nil, err
	}
	if err := m.store.Download(ctx, rec.ObjectPath, localPath); err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", localPath))
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	colNames := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		colNames[i] = c.Name
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(colNames, ", "), def.Name, strings.Join(def.ReadOrder, ", "))

	sqlRows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer sqlRows.Close()

	var rows [][]interface{}
	values := make([]interface{}, len(colNames))
	ptrs := make([]interface{}, len(colNames))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for sqlRows.Next() {
		if err := sqlRows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[i] = v
		}
		rows = append(rows, row)
		for i := range values {
			values[i] = nil
		}
	}
	return colNames, rows, sqlRows.Err()
}
