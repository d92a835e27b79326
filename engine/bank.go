package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result summarises one run of the bank.
type Result struct {
	InitialBalance int64         `json:"initial_balance"`
	FinalBalance   int64         `json:"final_balance"`
	Submitted      int           `json:"submitted"`
	Processed      int64         `json:"processed"`
	Rejected       int64         `json:"rejected"`
	Abandoned      int           `json:"abandoned"`
	TimedOut       bool          `json:"timed_out"`
	Elapsed        time.Duration `json:"elapsed"`
	Ledger         LedgerStats   `json:"ledger"`
	Pool           PoolStats     `json:"pool"`
	Queue          QueueStats    `json:"queue"`
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bank) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithReporter sets the reporter that receives every queued, processed,
// rejected and stopped event.
func WithReporter(r Reporter) Option {
	return func(b *Bank) {
		if r != nil {
			b.reporter = r
		}
	}
}

// Bank wires the ledger, work queue, teller pool and customers together and
// sequences a run from start-up to shutdown.
type Bank struct {
	cfg      Config
	logger   *slog.Logger
	reporter Reporter

	ledger *Ledger
	queue  *WorkQueue
	pool   *TellerPool
}

// NewBank validates cfg and builds the ledger, queue and teller pool.
// Nothing runs until Run is called.
func NewBank(cfg Config, opts ...Option) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bank{
		cfg:      cfg,
		logger:   slog.Default(),
		reporter: nopReporter{},
	}
	for _, opt := range opts {
		opt(b)
	}

	ledger, err := NewLedger(cfg.InitialBalance)
	if err != nil {
		return nil, err
	}
	b.ledger = ledger
	b.queue = NewWorkQueue()
	b.pool = NewTellerPool("tellers", cfg.Tellers, b.ledger, b.queue, b.reporter)

	return b, nil
}

// Ledger returns the bank's ledger.
func (b *Bank) Ledger() *Ledger { return b.ledger }

// Queue returns the bank's work queue.
func (b *Bank) Queue() *WorkQueue { return b.queue }

// Pool returns the bank's teller pool.
func (b *Bank) Pool() *TellerPool { return b.pool }

// Run starts the tellers, lets every customer submit, waits the grace
// interval, stops the tellers and reports the final state. A Bank can only
// run once.
//
// Transactions still queued when the tellers stop are abandoned and counted in
// Result.Abandoned. A shutdown that exceeds the timeout sets Result.TimedOut.
// The only error returned besides a second Run is a customer failing to
// submit, and in that case the tellers have already been stopped.
func (b *Bank) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := b.pool.Start(ctx); err != nil {
		return nil, err
	}
	b.logger.Info("tellers started",
		"tellers", b.cfg.Tellers,
		"initial_balance", b.cfg.InitialBalance)

	submitted, custErr := b.runCustomers()
	if custErr != nil {
		b.logger.Error("customer failed to submit", "error", custErr)
	} else {
		b.logger.Debug("all customers submitted", "submitted", submitted)
		b.waitGrace(ctx)
	}

	timedOut := b.shutdown()

	pool := b.pool.GetStats()
	queue := b.queue.Stats()
	ledger := b.ledger.Stats()
	res := &Result{
		InitialBalance: b.cfg.InitialBalance,
		FinalBalance:   ledger.Balance,
		Submitted:      submitted,
		Processed:      pool.Processed,
		Rejected:       pool.Rejected,
		Abandoned:      queue.Pending,
		TimedOut:       timedOut,
		Elapsed:        time.Since(start),
		Ledger:         ledger,
		Pool:           pool,
		Queue:          queue,
	}

	if res.Abandoned > 0 {
		b.logger.Warn("transactions abandoned at shutdown", "abandoned", res.Abandoned)
	}
	b.logger.Info("bank closed",
		"final_balance", res.FinalBalance,
		"processed", res.Processed,
		"rejected", res.Rejected,
		"elapsed", res.Elapsed)

	return res, custErr
}

// runCustomers launches one goroutine per customer, or submits them in order
// when the config asks for sequential submission, and waits for all of them.
func (b *Bank) runCustomers() (int, error) {
	var submitted atomic.Int64

	if b.cfg.Sequential {
		for _, spec := range b.cfg.Customers {
			if _, err := NewCustomer(spec, b.queue, b.reporter).Run(); err != nil {
				return int(submitted.Load()), err
			}
			submitted.Add(1)
		}
		return int(submitted.Load()), nil
	}

	var g errgroup.Group
	for _, spec := range b.cfg.Customers {
		c := NewCustomer(spec, b.queue, b.reporter)
		g.Go(func() error {
			if _, err := c.Run(); err != nil {
				return err
			}
			submitted.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(submitted.Load()), err
}

func (b *Bank) waitGrace(ctx context.Context) {
	if b.cfg.GraceInterval <= 0 {
		return
	}

	timer := time.NewTimer(b.cfg.GraceInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// shutdown stops the tellers and reports whether they failed to stop within
// the shutdown timeout.
func (b *Bank) shutdown() bool {
	if b.cfg.DrainOnShutdown {
		b.queue.Close()
		if err := b.pool.Wait(b.cfg.ShutdownTimeout); err == nil {
			return false
		}
		b.logger.Warn("queue not drained in time, cancelling tellers",
			"pending", b.queue.Len())
	}

	// Cancel before closing, so woken tellers see the cancellation and leave
	// the remaining items alone.
	b.pool.Cancel()
	b.queue.Close()

	if err := b.pool.Wait(b.cfg.ShutdownTimeout); err != nil {
		b.logger.Warn("tellers did not stop in time",
			"timeout", b.cfg.ShutdownTimeout,
			"active", b.pool.GetStats().Active)
		return true
	}
	return false
}
