package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors for teller pool operations
var (
	ErrShutdownTimeout = errors.New("shutdown timeout")
	ErrPoolStarted     = errors.New("teller pool already started")
)

// PoolStats contains teller pool statistics.
type PoolStats struct {
	Name      string `json:"name"`
	Tellers   int    `json:"tellers"`
	Active    int    `json:"active"`
	Processed int64  `json:"processed"`
	Rejected  int64  `json:"rejected"`
	Faults    int64  `json:"faults"`
	Pending   int    `json:"pending"`
}

// TellerPool runs a fixed number of tellers against one ledger and queue.
type TellerPool struct {
	name    string
	tellers []*Teller
	queue   *WorkQueue
	wg      sync.WaitGroup

	// Control
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	running bool
	mu      sync.RWMutex
}

// NewTellerPool creates a pool of size tellers named Teller-1..Teller-N.
// The tellers do not run until Start is called.
func NewTellerPool(name string, size int, ledger *Ledger, queue *WorkQueue, reporter Reporter) *TellerPool {
	if size <= 0 {
		size = 1
	}

	tellers := make([]*Teller, size)
	for i := range tellers {
		tellers[i] = NewTeller(fmt.Sprintf("Teller-%d", i+1), ledger, queue, reporter)
	}

	return &TellerPool{
		name:    name,
		tellers: tellers,
		queue:   queue,
		done:    make(chan struct{}),
	}
}

// Start launches every teller. The tellers stop when ctx is cancelled, when
// Cancel is called, or once the queue is closed and drained.
func (p *TellerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolStarted
	}
	p.started = true
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	for _, t := range p.tellers {
		p.wg.Add(1)
		go func(t *Teller) {
			defer p.wg.Done()
			_ = t.Run(ctx)
		}(t)
	}

	go func() {
		p.wg.Wait()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(p.done)
	}()

	return nil
}

// Cancel signals every teller to stop. Tellers blocked on the queue wake up
// at once; a teller in the middle of a transaction finishes it first.
func (p *TellerPool) Cancel() {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until every teller has stopped or timeout elapses.
func (p *TellerPool) Wait(timeout time.Duration) error {
	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if !started {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

// ShutdownWithTimeout cancels the tellers and waits for them to stop.
func (p *TellerPool) ShutdownWithTimeout(timeout time.Duration) error {
	p.Cancel()
	return p.Wait(timeout)
}

// Done is closed once every teller has stopped.
func (p *TellerPool) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true while at least one teller is still running.
func (p *TellerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Tellers returns the pool's tellers.
func (p *TellerPool) Tellers() []*Teller {
	out := make([]*Teller, len(p.tellers))
	copy(out, p.tellers)
	return out
}

// GetStats returns current teller pool statistics.
func (p *TellerPool) GetStats() PoolStats {
	stats := PoolStats{
		Name:    p.name,
		Tellers: len(p.tellers),
		Pending: p.queue.Len(),
	}
	for _, t := range p.tellers {
		if t.State() != TellerCancelled {
			stats.Active++
		}
		stats.Processed += t.Processed()
		stats.Rejected += t.Rejected()
		stats.Faults += t.Faults()
	}
	return stats
}
