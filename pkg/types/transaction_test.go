package types

import "testing"

func TestIsKnownType(t *testing.T) {
	for _, tt := range KnownTypes() {
		if !IsKnownType(tt) {
			t.Errorf("expected %s to be a known type", tt)
		}
	}
	if IsKnownType("WIRE") {
		t.Error("WIRE should not be a known type")
	}
	if IsKnownType("") {
		t.Error("empty string should not be a known type")
	}
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{TxID: 1, Step: 5, Type: TypeTransfer, Amount: 181.0, NameOrig: "C1305486145", NameDest: "C553264065"}
	if err := tx.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := tx
	bad.TxID = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative tx_id")
	}

	bad = tx
	bad.Type = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty tx_type")
	}

	bad = tx
	bad.NameOrig = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty name_orig")
	}
}

func TestPartitionedSchemaOmitsPartitionColumn(t *testing.T) {
	base := BaseSchema()
	part := PartitionedSchema()

	if !base.HasColumn(PartitionColumn) {
		t.Fatalf("base schema should contain %s", PartitionColumn)
	}
	if part.HasColumn(PartitionColumn) {
		t.Fatalf("partitioned schema should not contain %s", PartitionColumn)
	}
	if len(part.Columns) != len(base.Columns)-1 {
		t.Errorf("expected %d columns, got %d", len(base.Columns)-1, len(part.Columns))
	}
}

func TestSegmentName(t *testing.T) {
	key := PartitionKey{Value: TypeTransfer, Bucket: 3}
	if got := key.Segment(); got != "TRANSFER/b003" {
		t.Errorf("expected TRANSFER/b003, got %s", got)
	}
}

func TestLayoutConfigValidate(t *testing.T) {
	cases := []struct {
		cfg     LayoutConfig
		wantErr bool
	}{
		{LayoutConfig{Layout: LayoutFlat}, false},
		{LayoutConfig{Layout: LayoutTyped, Buckets: 8}, false},
		{LayoutConfig{Layout: LayoutTyped, Buckets: 0}, true},
		{LayoutConfig{Layout: "range"}, true},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if c.wantErr && err == nil {
			t.Errorf("expected error for %+v", c.cfg)
		}
		if !c.wantErr && err != nil {
			t.Errorf("unexpected error for %+v: %v", c.cfg, err)
		}
	}
}
