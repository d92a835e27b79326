package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func mustTx(t testing.TB, customer string, kind Kind, amount int64) Transaction {
	t.Helper()
	tx, err := NewTransaction(customer, kind, amount)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	return tx
}

func TestWorkQueueFIFO(t *testing.T) {
	q := NewWorkQueue()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := q.Enqueue(mustTx(t, "C", Deposit, int64(i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Expected length 5, got %d", q.Len())
	}

	for i := 1; i <= 5; i++ {
		tx, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if tx.Amount() != int64(i) {
			t.Errorf("Expected amount %d, got %d", i, tx.Amount())
		}
	}

	stats := q.Stats()
	if stats.Enqueued != 5 || stats.Dequeued != 5 || stats.Pending != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestWorkQueueEnqueueInvalid(t *testing.T) {
	q := NewWorkQueue()

	err := q.Enqueue(Transaction{})
	if !errors.Is(err, ErrInvalidTx) {
		t.Fatalf("Expected ErrInvalidTx for zero transaction, got %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d items", q.Len())
	}
	if stats := q.Stats(); stats.Enqueued != 0 {
		t.Errorf("Expected no enqueued items, got %d", stats.Enqueued)
	}

	// A teller on the other end never sees it, so nothing is rejected.
	ledger, _ := NewLedger(100)
	teller := NewTeller("Teller-1", ledger, q, nil)
	q.Close()
	if err := teller.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if teller.Rejected() != 0 || ledger.Stats().Rejected != 0 {
		t.Errorf("Expected no rejections, teller=%d ledger=%d", teller.Rejected(), ledger.Stats().Rejected)
	}
}

func TestWorkQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewWorkQueue()
	got := make(chan Transaction, 1)

	go func() {
		tx, err := q.Dequeue(context.Background())
		if err == nil {
			got <- tx
		}
	}()

	select {
	case <-got:
		t.Fatal("Dequeue returned before anything was queued")
	case <-time.After(50 * time.Millisecond):
	}

	want := mustTx(t, "C1", Withdrawal, 10)
	_ = q.Enqueue(want)

	select {
	case tx := <-got:
		if tx.ID() != want.ID() {
			t.Errorf("Expected %s, got %s", want.ID(), tx.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for blocked Dequeue")
	}
}

func TestWorkQueueDequeueCancel(t *testing.T) {
	q := NewWorkQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Cancelled Dequeue did not return")
	}

	// Nothing is lost by the cancelled waiter
	tx := mustTx(t, "C1", Deposit, 5)
	_ = q.Enqueue(tx)
	if q.Len() != 1 {
		t.Errorf("Expected queued item to remain, length %d", q.Len())
	}
}

func TestWorkQueueCancelledContextDoesNotClaim(t *testing.T) {
	q := NewWorkQueue()
	_ = q.Enqueue(mustTx(t, "C1", Deposit, 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Cancelled consumer claimed an item, length %d", q.Len())
	}
}

func TestWorkQueueClose(t *testing.T) {
	q := NewWorkQueue()
	_ = q.Enqueue(mustTx(t, "C1", Deposit, 1))
	_ = q.Enqueue(mustTx(t, "C2", Deposit, 2))

	q.Close()
	q.Close() // idempotent

	if !q.IsClosed() {
		t.Error("Queue should report closed")
	}
	if err := q.Enqueue(mustTx(t, "C3", Deposit, 3)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		tx, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Queued items should drain after Close: %v", err)
		}
		if tx.Amount() != int64(i) {
			t.Errorf("Expected amount %d, got %d", i, tx.Amount())
		}
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on empty closed queue, got %v", err)
	}
}

func TestWorkQueueCloseWakesWaiters(t *testing.T) {
	q := NewWorkQueue()

	const waiters = 4
	errc := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, err := q.Dequeue(context.Background())
			errc <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	for i := 0; i < waiters; i++ {
		select {
		case err := <-errc:
			if !errors.Is(err, ErrQueueClosed) {
				t.Errorf("Expected ErrQueueClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Close did not wake all waiters")
		}
	}
}

func TestWorkQueueConcurrentProducersConsumers(t *testing.T) {
	q := NewWorkQueue()

	const producers = 8
	const perProducer = 500
	const consumers = 4

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]int)
	var cwg sync.WaitGroup
	violations := make(chan string, producers*perProducer)

	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			last := make(map[string]int64)
			for {
				tx, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				// Each consumer sees a subsequence of every producer's stream
				if prev, ok := last[tx.Customer()]; ok && tx.Amount() <= prev {
					violations <- fmt.Sprintf("%s: %d after %d", tx.Customer(), tx.Amount(), prev)
				}
				last[tx.Customer()] = tx.Amount()

				mu.Lock()
				seen[tx.ID()]++
				mu.Unlock()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 1; i <= perProducer; i++ {
				tx, _ := NewTransaction(fmt.Sprintf("producer-%d", p), Deposit, int64(i))
				if err := q.Enqueue(tx); err != nil {
					t.Errorf("Enqueue failed: %v", err)
				}
			}
		}(p)
	}
	pwg.Wait()
	q.Close()
	cwg.Wait()
	close(violations)

	for v := range violations {
		t.Errorf("Per-producer order violated: %s", v)
	}
	if len(seen) != producers*perProducer {
		t.Errorf("Expected %d distinct items, got %d", producers*perProducer, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("Item %s dequeued %d times", id, n)
		}
	}
}

func BenchmarkWorkQueueEnqueueDequeue(b *testing.B) {
	q := NewWorkQueue()
	tx := mustTx(b, "bench", Deposit, 1)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Enqueue(tx)
		_, _ = q.Dequeue(ctx)
	}
}
