package partition

import (
	"fmt"

	"github.com/fraudlake/fraudlake/pkg/types"
)

// Validator checks a routed batch before it becomes a segment.
type Validator struct {
	layout types.Layout
}

// NewValidator creates a validator for the given layout.
func NewValidator(layout types.Layout) *Validator {
	return &Validator{layout: layout}
}

// Validate checks batch invariants: every row passes record validation,
// tx_ids are unique within the batch, and for the typed layout every row's
// type matches the partition key (the stored rows drop the column, so a
// mismatch would silently corrupt query results).
func (v *Validator) Validate(txs []types.Transaction, key types.PartitionKey) error {
	seen := make(map[int64]struct{}, len(txs))

	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}

		if _, dup := seen[tx.TxID]; dup {
			return fmt.Errorf("row %d: duplicate tx_id %d in batch", i, tx.TxID)
		}
		seen[tx.TxID] = struct{}{}

		if v.layout == types.LayoutTyped && tx.Type != key.Value {
			return fmt.Errorf("row %d: tx_type %q does not match partition key %q", i, tx.Type, key.Value)
		}
	}

	return nil
}
