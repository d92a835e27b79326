package engine

import (
	"errors"
	"sync"
)

// ErrNegativeBalance is returned when a ledger is opened below zero.
var ErrNegativeBalance = errors.New("initial balance cannot be negative")

// LedgerStats is a consistent snapshot of the ledger's counters.
type LedgerStats struct {
	Initial     int64 `json:"initial"`
	Balance     int64 `json:"balance"`
	Deposited   int64 `json:"deposited"`
	Withdrawn   int64 `json:"withdrawn"`
	Deposits    int64 `json:"deposits"`
	Withdrawals int64 `json:"withdrawals"`
	Rejected    int64 `json:"rejected"`
	LowWater    int64 `json:"low_water"`
}

// Ledger holds the single shared balance.
// Every read and write happens under mu, so a withdrawal's check and decrement
// cannot be split by another operation and the balance never drops below zero.
type Ledger struct {
	mu sync.Mutex

	initial     int64
	balance     int64
	deposited   int64
	withdrawn   int64
	deposits    int64
	withdrawals int64
	rejected    int64
	lowWater    int64
}

// NewLedger opens a ledger holding initial.
func NewLedger(initial int64) (*Ledger, error) {
	if initial < 0 {
		return nil, ErrNegativeBalance
	}
	return &Ledger{initial: initial, balance: initial, lowWater: initial}, nil
}

// Withdraw takes amount out of the balance if it is covered.
// It returns false, leaving the balance untouched, when funds are short or
// amount is not positive.
func (l *Ledger) Withdraw(amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawLocked(amount)
}

// Deposit adds amount to the balance. It only returns false for a
// non-positive amount.
func (l *Ledger) Deposit(amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depositLocked(amount)
}

// Balance returns the current balance.
func (l *Ledger) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Apply performs tx and returns whether it took effect together with the
// balance right after, read inside the same critical section.
func (l *Ledger) Apply(tx Transaction) (bool, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var applied bool
	if tx.IsWithdrawal() {
		applied = l.withdrawLocked(tx.Amount())
	} else {
		applied = l.depositLocked(tx.Amount())
	}
	return applied, l.balance
}

// Stats returns a snapshot of the ledger counters.
func (l *Ledger) Stats() LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LedgerStats{
		Initial:     l.initial,
		Balance:     l.balance,
		Deposited:   l.deposited,
		Withdrawn:   l.withdrawn,
		Deposits:    l.deposits,
		Withdrawals: l.withdrawals,
		Rejected:    l.rejected,
		LowWater:    l.lowWater,
	}
}

func (l *Ledger) withdrawLocked(amount int64) bool {
	if amount <= 0 {
		return false
	}
	if l.balance < amount {
		l.rejected++
		return false
	}
	l.balance -= amount
	l.withdrawn += amount
	l.withdrawals++
	if l.balance < l.lowWater {
		l.lowWater = l.balance
	}
	return true
}

func (l *Ledger) depositLocked(amount int64) bool {
	if amount <= 0 {
		return false
	}
	l.balance += amount
	l.deposited += amount
	l.deposits++
	return true
}
