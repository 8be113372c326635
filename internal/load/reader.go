// Package load implements bulk loading of the transactions table from the
// external file store: a delimited text source, one record per line,
// comma-separated, matching the base schema field order.
package load

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/snappy"

	"github.com/fraudlake/fraudlake/internal/errors"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// Source field layouts, distinguished by field count:
//
//	10 fields: step .. is_fraud                    (no id, no flagged column)
//	11 fields: step .. is_flagged_fraud            (the dataset's native form)
//	12 fields: tx_id, step .. is_flagged_fraud     (id carried in the file)
//
// When the file carries no id, the reader assigns sequential ids starting
// at 1 in file order.
const (
	fieldsNoID        = 10
	fieldsNoIDFlagged = 11
	fieldsWithID      = 12
)

// Reader streams transactions out of a delimited source.
type Reader struct {
	csv     *csv.Reader
	line    int
	nextID  int64
	started bool
}

// NewReader creates a reader over r. Pass the raw source stream; use
// NewSnappyReader for snappy-framed sources.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // validated per record; layouts may differ in width
	cr.ReuseRecord = true
	return &Reader{csv: cr, nextID: 1}
}

// NewSnappyReader creates a reader over a snappy-framed source stream.
func NewSnappyReader(r io.Reader) *Reader {
	return NewReader(snappy.NewReader(r))
}

// Next returns the next transaction, or io.EOF when the source is
// exhausted. A header line is detected and skipped. Any malformed row
// aborts the read with a structured error naming the line.
func (r *Reader) Next() (types.Transaction, error) {
	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			return types.Transaction{}, io.EOF
		}
		if err != nil {
			return types.Transaction{}, errors.NewLoadError(errors.CodeMalformedRow,
				fmt.Sprintf("line %d: unreadable record", r.line+1), err)
		}
		r.line++

		if !r.started {
			r.started = true
			if isHeader(record) {
				continue
			}
		}

		tx, err := r.parseRecord(record)
		if err != nil {
			return types.Transaction{}, errors.NewLoadError(errors.CodeMalformedRow,
				fmt.Sprintf("line %d: %v", r.line, err), nil)
		}
		return tx, nil
	}
}

// ReadAll drains the reader into a slice.
func (r *Reader) ReadAll() ([]types.Transaction, error) {
	var txs []types.Transaction
	for {
		tx, err := r.Next()
		if err == io.EOF {
			return txs, nil
		}
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
}

// parseRecord converts one CSV record into a transaction.
func (r *Reader) parseRecord(record []string) (types.Transaction, error) {
	var tx types.Transaction
	fields := record

	switch len(record) {
	case fieldsWithID:
		id, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return tx, fmt.Errorf("invalid tx_id %q", record[0])
		}
		tx.TxID = id
		fields = record[1:]
	case fieldsNoID, fieldsNoIDFlagged:
		tx.TxID = r.nextID
		r.nextID++
	default:
		return tx, fmt.Errorf("expected %d, %d or %d fields, got %d",
			fieldsNoID, fieldsNoIDFlagged, fieldsWithID, len(record))
	}

	step, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return tx, fmt.Errorf("invalid step %q", fields[0])
	}
	tx.Step = step

	tx.Type = strings.TrimSpace(fields[1])
	if tx.Type == "" {
		return tx, fmt.Errorf("empty tx_type")
	}

	floats := []struct {
		idx  int
		dest *float64
		name string
	}{
		{2, &tx.Amount, "amount"},
		{4, &tx.OldBalanceOrig, "old_balance_orig"},
		{5, &tx.NewBalanceOrig, "new_balance_orig"},
		{7, &tx.OldBalanceDest, "old_balance_dest"},
		{8, &tx.NewBalanceDest, "new_balance_dest"},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[f.idx]), 64)
		if err != nil {
			return tx, fmt.Errorf("invalid %s %q", f.name, fields[f.idx])
		}
		*f.dest = v
	}

	tx.NameOrig = strings.TrimSpace(fields[3])
	tx.NameDest = strings.TrimSpace(fields[6])

	fraud, err := parseBool(fields[9])
	if err != nil {
		return tx, fmt.Errorf("invalid is_fraud %q", fields[9])
	}
	tx.IsFraud = fraud

	if len(fields) > fieldsNoID {
		flagged, err := parseBool(fields[10])
		if err != nil {
			return tx, fmt.Errorf("invalid is_flagged_fraud %q", fields[10])
		}
		tx.IsFlaggedFraud = flagged
	}

	return tx, tx.Validate()
}

// isHeader reports whether the record looks like a header line.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "step" || first == "tx_id" || first == "id"
}

// parseBool accepts the 0/1 flags the dataset uses, plus true/false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	}
	return false, fmt.Errorf("not a boolean flag")
}
