package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// TellerState is the lifecycle state of a teller.
type TellerState int32

const (
	TellerRunning TellerState = iota
	TellerProcessing
	TellerCancelled
)

func (s TellerState) String() string {
	switch s {
	case TellerRunning:
		return "running"
	case TellerProcessing:
		return "processing"
	case TellerCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Teller pulls transactions off the queue one at a time and applies them to
// the ledger until it is cancelled.
type Teller struct {
	name     string
	ledger   *Ledger
	queue    *WorkQueue
	reporter Reporter

	state     atomic.Int32
	processed atomic.Int64
	rejected  atomic.Int64
	faults    atomic.Int64
}

// NewTeller creates a teller bound to ledger and queue. A nil reporter
// discards events.
func NewTeller(name string, ledger *Ledger, queue *WorkQueue, reporter Reporter) *Teller {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Teller{
		name:     name,
		ledger:   ledger,
		queue:    queue,
		reporter: reporter,
	}
}

// Name returns the teller's name.
func (t *Teller) Name() string { return t.name }

// State returns the current lifecycle state.
func (t *Teller) State() TellerState { return TellerState(t.state.Load()) }

// Processed returns the number of transactions applied.
func (t *Teller) Processed() int64 { return t.processed.Load() }

// Rejected returns the number of withdrawals refused for insufficient funds.
func (t *Teller) Rejected() int64 { return t.rejected.Load() }

// Faults returns the number of transactions whose handling panicked.
func (t *Teller) Faults() int64 { return t.faults.Load() }

// Run processes transactions until ctx is cancelled or the queue is closed and
// empty. Both are normal terminations and return nil. A transaction already
// taken off the queue is always finished before Run returns.
func (t *Teller) Run(ctx context.Context) error {
	t.state.Store(int32(TellerRunning))
	defer func() {
		t.state.Store(int32(TellerCancelled))
		t.report(Event{Kind: EventStopped, Actor: t.name, Pending: t.queue.Len(), At: time.Now()})
	}()

	for {
		tx, err := t.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}

		t.state.Store(int32(TellerProcessing))
		t.process(tx)
		t.state.Store(int32(TellerRunning))
	}
}

// process applies one transaction. Panics are recovered so that one bad
// transaction cannot take the teller down.
func (t *Teller) process(tx Transaction) {
	defer func() {
		if r := recover(); r != nil {
			t.faults.Add(1)
		}
	}()

	if err := tx.Validate(); err != nil {
		t.faults.Add(1)
		return
	}

	applied, balance := t.ledger.Apply(tx)

	ev := Event{Actor: t.name, Tx: tx, Balance: balance, Pending: t.queue.Len(), At: time.Now()}
	if applied {
		t.processed.Add(1)
		ev.Kind = EventProcessed
	} else {
		t.rejected.Add(1)
		ev.Kind = EventRejected
	}
	t.reporter.Report(ev)
}

func (t *Teller) report(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			t.faults.Add(1)
		}
	}()
	t.reporter.Report(ev)
}
