package catalog

// DDL statements for the catalog database. Kept as ordered constants so the
// full schema can be (re)applied idempotently at startup.

const segmentsTableSQL = `
CREATE TABLE IF NOT EXISTS segments (
	segment_id     TEXT PRIMARY KEY,
	partition_key  TEXT NOT NULL,
	bucket         INTEGER NOT NULL,
	layout         TEXT NOT NULL,
	object_path    TEXT NOT NULL,
	meta_path      TEXT NOT NULL,
	min_tx_id      INTEGER,
	max_tx_id      INTEGER,
	min_step       INTEGER,
	max_step       INTEGER,
	min_amount     REAL,
	max_amount     REAL,
	row_count      INTEGER NOT NULL,
	fraud_count    INTEGER NOT NULL,
	size_bytes     INTEGER NOT NULL,
	schema_version INTEGER NOT NULL,
	created_at     INTEGER NOT NULL
)`

const segmentsKeyIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_segments_key ON segments(partition_key, bucket)`

const viewsTableSQL = `
CREATE TABLE IF NOT EXISTS views (
	name        TEXT PRIMARY KEY,
	object_path TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	size_bytes  INTEGER NOT NULL,
	built_at    INTEGER NOT NULL
)`

const tableMetaSQL = `
CREATE TABLE IF NOT EXISTS table_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// AllSchemaSQL returns all catalog DDL statements in application order.
func AllSchemaSQL() []string {
	return []string{
		segmentsTableSQL,
		segmentsKeyIndexSQL,
		viewsTableSQL,
		tableMetaSQL,
	}
}
