package types

// Schema defines the column layout of a table or partition segment.
type Schema struct {
	// Version tracks schema evolution for backward compatibility
	Version int `json:"version"`

	// Columns defines the columns in order
	Columns []ColumnDef `json:"columns"`

	// Indexes defines the indexes to create on each segment
	Indexes []IndexDef `json:"indexes"`
}

// ColumnDef defines a single column.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the SQLite type: TEXT, INTEGER, REAL, BLOB
	Type string `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable"`

	// PrimaryKey indicates whether this column is the primary key
	PrimaryKey bool `json:"primary_key"`
}

// IndexDef defines an index on a segment.
type IndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// HasColumn reports whether the schema contains a column with the given name.
func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// BaseSchema returns the schema of the flat transactions table, in source
// file field order.
func BaseSchema() Schema {
	return Schema{
		Version: 1,
		Columns: []ColumnDef{
			{Name: "tx_id", Type: "INTEGER", Nullable: false, PrimaryKey: true},
			{Name: "step", Type: "INTEGER", Nullable: false},
			{Name: "tx_type", Type: "TEXT", Nullable: false},
			{Name: "amount", Type: "REAL", Nullable: false},
			{Name: "name_orig", Type: "TEXT", Nullable: false},
			{Name: "old_balance_orig", Type: "REAL", Nullable: false},
			{Name: "new_balance_orig", Type: "REAL", Nullable: false},
			{Name: "name_dest", Type: "TEXT", Nullable: false},
			{Name: "old_balance_dest", Type: "REAL", Nullable: false},
			{Name: "new_balance_dest", Type: "REAL", Nullable: false},
			{Name: "is_fraud", Type: "INTEGER", Nullable: false},
			{Name: "is_flagged_fraud", Type: "INTEGER", Nullable: false},
		},
		Indexes: []IndexDef{
			{Name: "idx_tx_amount", Columns: []string{"amount"}},
			{Name: "idx_tx_name_orig", Columns: []string{"name_orig"}},
		},
	}
}

// PartitionedSchema returns the schema stored inside typed-layout segments:
// the base schema minus tx_type. The partition key acts as the segment
// discriminator and the executor reinjects the value when projected.
func PartitionedSchema() Schema {
	base := BaseSchema()
	cols := make([]ColumnDef, 0, len(base.Columns)-1)
	for _, c := range base.Columns {
		if c.Name == PartitionColumn {
			continue
		}
		cols = append(cols, c)
	}
	base.Columns = cols
	return base
}
