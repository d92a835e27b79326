package engine

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Close, and by Dequeue once a
// closed queue has been emptied.
var ErrQueueClosed = errors.New("work queue is closed")

// QueueStats contains work queue statistics.
type QueueStats struct {
	Pending  int   `json:"pending"`
	Enqueued int64 `json:"enqueued"`
	Dequeued int64 `json:"dequeued"`
	Closed   bool  `json:"closed"`
}

// WorkQueue is an unbounded FIFO of transactions, safe for any number of
// producers and consumers.
//
// Waiting consumers block on wake, which is closed and replaced whenever an
// item arrives or the queue closes. That lets Dequeue select on ctx.Done()
// next to it, something sync.Cond cannot do.
type WorkQueue struct {
	mu       sync.Mutex
	items    *list.List
	wake     chan struct{}
	closed   bool
	enqueued int64
	dequeued int64
}

// NewWorkQueue creates an empty, open queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{
		items: list.New(),
		wake:  make(chan struct{}),
	}
}

// Enqueue appends tx at the tail. It never blocks. Transactions that fail
// Validate are refused with ErrInvalidTx.
func (q *WorkQueue) Enqueue(tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items.PushBack(tx)
	q.enqueued++
	q.broadcastLocked()
	return nil
}

// Dequeue removes and returns the head of the queue, waiting while it is empty.
// It returns ctx.Err() as soon as ctx is done, without claiming an item.
func (q *WorkQueue) Dequeue(ctx context.Context) (Transaction, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Transaction{}, err
		}

		q.mu.Lock()
		if front := q.items.Front(); front != nil {
			tx := q.items.Remove(front).(Transaction)
			q.dequeued++
			q.mu.Unlock()
			return tx, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Transaction{}, ErrQueueClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Transaction{}, ctx.Err()
		case <-wake:
		}
	}
}

// Close stops the queue from accepting work and wakes every waiting consumer.
// Items already queued can still be dequeued. Close is idempotent.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// Len returns the number of queued transactions.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// IsClosed reports whether Close has been called.
func (q *WorkQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Stats returns queue statistics.
func (q *WorkQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Pending:  q.items.Len(),
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Closed:   q.closed,
	}
}

func (q *WorkQueue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}
