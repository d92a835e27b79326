package engine

import (
	"fmt"
	"time"
)

// CustomerSpec describes the single transaction a customer submits.
type CustomerSpec struct {
	Name       string `json:"name"`
	Withdrawal bool   `json:"withdrawal"`
	Amount     int64  `json:"amount"`
}

// Kind returns the transaction direction of the spec.
func (s CustomerSpec) Kind() Kind {
	if s.Withdrawal {
		return Withdrawal
	}
	return Deposit
}

// Validate checks the spec would produce a valid transaction.
func (s CustomerSpec) Validate() error {
	if s.Name == "" {
		return ErrEmptyCustomer
	}
	if s.Amount <= 0 {
		return fmt.Errorf("customer %q: %w", s.Name, ErrInvalidAmount)
	}
	return nil
}

// Customer submits exactly one transaction and terminates.
type Customer struct {
	spec     CustomerSpec
	queue    *WorkQueue
	reporter Reporter
}

// NewCustomer creates a customer that will submit to queue.
func NewCustomer(spec CustomerSpec, queue *WorkQueue, reporter Reporter) *Customer {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Customer{spec: spec, queue: queue, reporter: reporter}
}

// Name returns the customer's name.
func (c *Customer) Name() string { return c.spec.Name }

// Run builds the transaction, enqueues it and reports it as queued.
// The returned transaction is the zero value on error.
func (c *Customer) Run() (Transaction, error) {
	tx, err := NewTransaction(c.spec.Name, c.spec.Kind(), c.spec.Amount)
	if err != nil {
		return Transaction{}, err
	}

	if err := c.queue.Enqueue(tx); err != nil {
		return Transaction{}, fmt.Errorf("customer %q: %w", c.spec.Name, err)
	}

	c.reporter.Report(Event{Kind: EventQueued, Actor: c.spec.Name, Tx: tx, Pending: c.queue.Len(), At: time.Now()})
	return tx, nil
}
