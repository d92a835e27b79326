package report

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/VanDung-dev/teller-bank/engine"
)

// ErrNoEvents is returned when there is nothing to convert.
var ErrNoEvents = errors.New("empty events slice")

// Summary aggregates a run from its event columns.
type Summary struct {
	Queued    int64 `json:"queued"`
	Processed int64 `json:"processed"`
	Rejected  int64 `json:"rejected"`
	Stopped   int64 `json:"stopped"`
	Deposited int64 `json:"deposited"`
	Withdrawn int64 `json:"withdrawn"`
}

// Net returns the change the run made to the ledger balance.
func (s Summary) Net() int64 {
	return s.Deposited - s.Withdrawn
}

// Converter turns bank events into Arrow records.
type Converter struct {
	allocator memory.Allocator
	schema    *arrow.Schema
}

// NewConverter creates a Converter with the default memory allocator.
func NewConverter() *Converter {
	return NewConverterWithAllocator(memory.DefaultAllocator)
}

// NewConverterWithAllocator creates a Converter using mem for all buffers.
func NewConverterWithAllocator(mem memory.Allocator) *Converter {
	return &Converter{
		allocator: mem,
		schema:    EventSchema(),
	}
}

// EventsToRecord converts events to a single Arrow record, one row per event.
// The caller must Release the record.
func (c *Converter) EventsToRecord(events []engine.Event) (arrow.Record, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	builder := array.NewRecordBuilder(c.allocator, c.schema)
	defer builder.Release()

	seqBuilder := builder.Field(colSeq).(*array.Int64Builder)
	eventBuilder := builder.Field(colEvent).(*array.StringBuilder)
	actorBuilder := builder.Field(colActor).(*array.StringBuilder)
	txIDBuilder := builder.Field(colTxID).(*array.StringBuilder)
	customerBuilder := builder.Field(colCustomer).(*array.StringBuilder)
	kindBuilder := builder.Field(colKind).(*array.StringBuilder)
	amountBuilder := builder.Field(colAmount).(*array.Int64Builder)
	balanceBuilder := builder.Field(colBalance).(*array.Int64Builder)
	timestampBuilder := builder.Field(colTimestamp).(*array.Float64Builder)

	for i, ev := range events {
		seqBuilder.Append(int64(i))
		eventBuilder.Append(ev.Kind.String())
		actorBuilder.Append(ev.Actor)

		if ev.Kind == engine.EventStopped {
			txIDBuilder.AppendNull()
			customerBuilder.AppendNull()
			kindBuilder.AppendNull()
			amountBuilder.AppendNull()
		} else {
			txIDBuilder.Append(ev.Tx.ID())
			customerBuilder.Append(ev.Tx.Customer())
			kindBuilder.Append(ev.Tx.Kind().String())
			amountBuilder.Append(ev.Tx.Amount())
		}

		if ev.Kind == engine.EventProcessed || ev.Kind == engine.EventRejected {
			balanceBuilder.Append(ev.Balance)
		} else {
			balanceBuilder.AppendNull()
		}

		timestampBuilder.Append(float64(ev.At.UnixNano()) / 1e9)
	}

	return builder.NewRecord(), nil
}

// Summarize totals a record built by EventsToRecord.
func Summarize(record arrow.Record) (Summary, error) {
	want := EventSchema()
	got := record.Schema()
	if got.NumFields() != want.NumFields() {
		return Summary{}, fmt.Errorf("expected %d fields, got %d", want.NumFields(), got.NumFields())
	}
	for i := 0; i < want.NumFields(); i++ {
		if got.Field(i).Name != want.Field(i).Name {
			return Summary{}, fmt.Errorf("field %d: expected %s, got %s", i, want.Field(i).Name, got.Field(i).Name)
		}
	}

	eventCol := record.Column(colEvent).(*array.String)
	kindCol := record.Column(colKind).(*array.String)
	amountCol := record.Column(colAmount).(*array.Int64)

	var s Summary
	for i := 0; i < int(record.NumRows()); i++ {
		switch eventCol.Value(i) {
		case engine.EventQueued.String():
			s.Queued++
		case engine.EventRejected.String():
			s.Rejected++
		case engine.EventStopped.String():
			s.Stopped++
		case engine.EventProcessed.String():
			s.Processed++
			if amountCol.IsNull(i) {
				continue
			}
			if kindCol.Value(i) == engine.Withdrawal.String() {
				s.Withdrawn += amountCol.Value(i)
			} else {
				s.Deposited += amountCol.Value(i)
			}
		}
	}
	return s, nil
}
