// Package types provides core data types for FraudLake.
package types

import "fmt"

// TxType enumerates the transaction types present in the source dataset.
type TxType = string

const (
	TypeCashIn   TxType = "CASH_IN"
	TypeCashOut  TxType = "CASH_OUT"
	TypeDebit    TxType = "DEBIT"
	TypePayment  TxType = "PAYMENT"
	TypeTransfer TxType = "TRANSFER"
)

// KnownTypes lists the transaction types in canonical order.
func KnownTypes() []TxType {
	return []TxType{TypeCashIn, TypeCashOut, TypeDebit, TypePayment, TypeTransfer}
}

// IsKnownType reports whether t is one of the enumerated transaction types.
func IsKnownType(t TxType) bool {
	switch t {
	case TypeCashIn, TypeCashOut, TypeDebit, TypePayment, TypeTransfer:
		return true
	}
	return false
}

// Transaction represents a single record in the base transactions table.
type Transaction struct {
	// TxID uniquely identifies the record within a load
	TxID int64 `json:"tx_id"`

	// Step is the simulation time step (hours); a monotonic proxy for time
	Step int64 `json:"step"`

	// Type categorizes the transaction (e.g. TRANSFER, CASH_OUT)
	Type TxType `json:"tx_type"`

	// Amount is the transferred currency value
	Amount float64 `json:"amount"`

	// NameOrig is the origin account name
	NameOrig string `json:"name_orig"`

	// OldBalanceOrig is the origin balance before the transaction
	OldBalanceOrig float64 `json:"old_balance_orig"`

	// NewBalanceOrig is the origin balance after the transaction
	NewBalanceOrig float64 `json:"new_balance_orig"`

	// NameDest is the destination account name
	NameDest string `json:"name_dest"`

	// OldBalanceDest is the destination balance before the transaction
	OldBalanceDest float64 `json:"old_balance_dest"`

	// NewBalanceDest is the destination balance after the transaction
	NewBalanceDest float64 `json:"new_balance_dest"`

	// IsFraud is the labeled fraud flag; input data, never computed here
	IsFraud bool `json:"is_fraud"`

	// IsFlaggedFraud marks transactions flagged by the source system's
	// own threshold rule; optional in the source file
	IsFlaggedFraud bool `json:"is_flagged_fraud"`
}

// Validate checks the invariants the loader enforces before a record is
// accepted into a partition. Amount non-negativity is a domain convention
// of the source dataset and is deliberately not enforced.
func (t *Transaction) Validate() error {
	if t.TxID < 0 {
		return fmt.Errorf("transaction: tx_id must be non-negative, got %d", t.TxID)
	}
	if t.Type == "" {
		return fmt.Errorf("transaction: tx_type must not be empty")
	}
	if t.NameOrig == "" {
		return fmt.Errorf("transaction: name_orig must not be empty")
	}
	return nil
}
