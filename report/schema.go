// Package report exports the events of a bank run as Apache Arrow data.
// This package implements:
// - Arrow schema for run events
// - Event to Arrow RecordBatch conversion
// - Arrow IPC stream serialization
// - Columnar summaries of a run
package report

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Column indexes of EventSchema.
const (
	colSeq = iota
	colEvent
	colActor
	colTxID
	colCustomer
	colKind
	colAmount
	colBalance
	colTimestamp
)

// EventSchema returns the Arrow schema for a run event.
//
// Fields:
//   - seq: int64 - Position of the event in the run
//   - event: string - queued, processed, rejected or stopped
//   - actor: string - Customer or teller that produced the event
//   - tx_id: string (nullable) - Transaction ID, null for stopped
//   - customer: string (nullable) - Customer named in the transaction
//   - kind: string (nullable) - withdrawal or deposit
//   - amount: int64 (nullable) - Transaction amount
//   - balance: int64 (nullable) - Ledger balance after processed or rejected
//   - timestamp: float64 - Unix timestamp in seconds
func EventSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "seq", Type: arrow.PrimitiveTypes.Int64},
			{Name: "event", Type: arrow.BinaryTypes.String},
			{Name: "actor", Type: arrow.BinaryTypes.String},
			{Name: "tx_id", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "customer", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "amount", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "balance", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "timestamp", Type: arrow.PrimitiveTypes.Float64},
		},
		nil,
	)
}
