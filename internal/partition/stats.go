package partition

import "github.com/fraudlake/fraudlake/pkg/types"

// MinMax holds min/max values for a column.
type MinMax struct {
	Min interface{}
	Max interface{}
}

// StatsTracker accumulates per-segment statistics while rows are inserted.
// Min/max values feed catalog pruning; the fraud count feeds the
// type-frequency view and verification.
type StatsTracker struct {
	rowCount   int64
	fraudCount int64

	minTxID, maxTxID   int64
	minStep, maxStep   int64
	minAmount          float64
	maxAmount          float64
	seenFirst          bool
}

// NewStatsTracker creates an empty stats tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

// Update folds a single transaction into the statistics.
func (s *StatsTracker) Update(tx types.Transaction) {
	if !s.seenFirst {
		s.minTxID, s.maxTxID = tx.TxID, tx.TxID
		s.minStep, s.maxStep = tx.Step, tx.Step
		s.minAmount, s.maxAmount = tx.Amount, tx.Amount
		s.seenFirst = true
	} else {
		if tx.TxID < s.minTxID {
			s.minTxID = tx.TxID
		}
		if tx.TxID > s.maxTxID {
			s.maxTxID = tx.TxID
		}
		if tx.Step < s.minStep {
			s.minStep = tx.Step
		}
		if tx.Step > s.maxStep {
			s.maxStep = tx.Step
		}
		if tx.Amount < s.minAmount {
			s.minAmount = tx.Amount
		}
		if tx.Amount > s.maxAmount {
			s.maxAmount = tx.Amount
		}
	}

	s.rowCount++
	if tx.IsFraud {
		s.fraudCount++
	}
}

// RowCount returns the number of rows folded in.
func (s *StatsTracker) RowCount() int64 { return s.rowCount }

// FraudCount returns the number of fraud-flagged rows folded in.
func (s *StatsTracker) FraudCount() int64 { return s.fraudCount }

// MinMaxStats returns the per-column min/max map keyed by column name.
// Empty when no rows were tracked.
func (s *StatsTracker) MinMaxStats() map[string]MinMax {
	if !s.seenFirst {
		return nil
	}
	return map[string]MinMax{
		"tx_id":  {Min: s.minTxID, Max: s.maxTxID},
		"step":   {Min: s.minStep, Max: s.maxStep},
		"amount": {Min: s.minAmount, Max: s.maxAmount},
	}
}
