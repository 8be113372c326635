package partition

import (
	"context"
	"database/sql"
	"testing"

	"github.com/fraudlake/fraudlake/pkg/types"
)

func sampleTxs() []types.Transaction {
	return []types.Transaction{
		{TxID: 1, Step: 1, Type: types.TypeTransfer, Amount: 181.0, NameOrig: "C1305486145", OldBalanceOrig: 181.0, NameDest: "C553264065", IsFraud: true},
		{TxID: 2, Step: 1, Type: types.TypeTransfer, Amount: 215310.3, NameOrig: "C1670993182", OldBalanceOrig: 705.0, NameDest: "C1100439041", IsFraud: false},
		{TxID: 3, Step: 2, Type: types.TypeTransfer, Amount: 311685.89, NameOrig: "C1984094095", OldBalanceOrig: 10835.0, NameDest: "C932583850", IsFraud: true},
	}
}

func TestBuildTypedSegment(t *testing.T) {
	builder := NewBuilder(t.TempDir())
	key := types.PartitionKey{Value: types.TypeTransfer, Bucket: 0}

	info, err := builder.Build(context.Background(), sampleTxs(), key, types.LayoutTyped)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if info.RowCount != 3 {
		t.Errorf("expected 3 rows, got %d", info.RowCount)
	}
	if info.FraudCount != 2 {
		t.Errorf("expected 2 fraud rows, got %d", info.FraudCount)
	}
	if info.SizeBytes <= 0 {
		t.Error("segment size should be positive")
	}

	// Typed segments must not store the partition column
	db, err := sql.Open("sqlite3", info.SQLitePath)
	if err != nil {
		t.Fatalf("failed to open segment: %v", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", TableName)
	if err != nil {
		t.Fatalf("failed to read table info: %v", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		cols = append(cols, name)
	}
	for _, c := range cols {
		if c == types.PartitionColumn {
			t.Errorf("typed segment should not contain column %s", types.PartitionColumn)
		}
	}

	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM " + TableName).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 stored rows, got %d", count)
	}
}

func TestBuildFlatSegmentKeepsTypeColumn(t *testing.T) {
	builder := NewBuilder(t.TempDir())
	key := types.PartitionKey{Value: types.FlatKey, Bucket: 0}

	txs := sampleTxs()
	txs[1].Type = types.TypePayment // flat segments mix types

	info, err := builder.Build(context.Background(), txs, key, types.LayoutFlat)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	db, err := sql.Open("sqlite3", info.SQLitePath)
	if err != nil {
		t.Fatalf("failed to open segment: %v", err)
	}
	defer db.Close()

	var got string
	err = db.QueryRow("SELECT tx_type FROM "+TableName+" WHERE tx_id = ?", 2).Scan(&got)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got != types.TypePayment {
		t.Errorf("expected PAYMENT, got %s", got)
	}
}

func TestBuildRejectsEmptyBatch(t *testing.T) {
	builder := NewBuilder(t.TempDir())
	key := types.PartitionKey{Value: types.TypeTransfer, Bucket: 0}

	if _, err := builder.Build(context.Background(), nil, key, types.LayoutTyped); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestBuildRejectsTypeMismatch(t *testing.T) {
	builder := NewBuilder(t.TempDir())
	key := types.PartitionKey{Value: types.TypePayment, Bucket: 0}

	if _, err := builder.Build(context.Background(), sampleTxs(), key, types.LayoutTyped); err == nil {
		t.Fatal("expected validation error for type mismatch")
	}
}

func TestBuildStats(t *testing.T) {
	builder := NewBuilder(t.TempDir())
	key := types.PartitionKey{Value: types.TypeTransfer, Bucket: 0}

	info, err := builder.Build(context.Background(), sampleTxs(), key, types.LayoutTyped)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	amount := info.MinMaxStats["amount"]
	if amount.Min.(float64) != 181.0 {
		t.Errorf("expected min amount 181.0, got %v", amount.Min)
	}
	if amount.Max.(float64) != 311685.89 {
		t.Errorf("expected max amount 311685.89, got %v", amount.Max)
	}

	step := info.MinMaxStats["step"]
	if step.Min.(int64) != 1 || step.Max.(int64) != 2 {
		t.Errorf("unexpected step bounds: %v..%v", step.Min, step.Max)
	}
}
