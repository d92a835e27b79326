package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors for transaction construction
var (
	ErrInvalidAmount = errors.New("amount must be > 0")
	ErrEmptyCustomer = errors.New("customer name is required")
	ErrUnknownKind   = errors.New("unknown transaction kind")
	ErrInvalidTx     = errors.New("invalid transaction")
)

// Kind is the direction of a transaction.
type Kind int

const (
	Withdrawal Kind = iota
	Deposit
)

func (k Kind) String() string {
	switch k {
	case Withdrawal:
		return "withdrawal"
	case Deposit:
		return "deposit"
	default:
		return "unknown"
	}
}

// Transaction is one requested withdrawal or deposit. It is a value type with
// unexported fields, so a constructed transaction cannot be altered.
type Transaction struct {
	id        string
	customer  string
	kind      Kind
	amount    int64
	createdAt time.Time
}

// NewTransaction validates its arguments and returns a transaction with a fresh ID.
func NewTransaction(customer string, kind Kind, amount int64) (Transaction, error) {
	if customer == "" {
		return Transaction{}, ErrEmptyCustomer
	}
	if kind != Withdrawal && kind != Deposit {
		return Transaction{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	return Transaction{
		id:        uuid.NewString(),
		customer:  customer,
		kind:      kind,
		amount:    amount,
		createdAt: time.Now(),
	}, nil
}

func (tx Transaction) ID() string           { return tx.id }
func (tx Transaction) Customer() string     { return tx.customer }
func (tx Transaction) Kind() Kind           { return tx.kind }
func (tx Transaction) Amount() int64        { return tx.amount }
func (tx Transaction) CreatedAt() time.Time { return tx.createdAt }

// Validate checks the transaction was built by NewTransaction. The zero value
// and anything else that skipped construction fail with ErrInvalidTx.
func (tx Transaction) Validate() error {
	if tx.id == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTx)
	}
	if tx.customer == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTx, ErrEmptyCustomer)
	}
	if tx.kind != Withdrawal && tx.kind != Deposit {
		return fmt.Errorf("%w: %w", ErrInvalidTx, ErrUnknownKind)
	}
	if tx.amount <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTx, ErrInvalidAmount)
	}
	return nil
}

// IsWithdrawal reports whether the transaction takes money out of the ledger.
func (tx Transaction) IsWithdrawal() bool { return tx.kind == Withdrawal }

// String renders the transaction as "<name> withdrew <n>" or "<name> deposited <n>".
func (tx Transaction) String() string {
	verb := "deposited"
	if tx.IsWithdrawal() {
		verb = "withdrew"
	}
	return fmt.Sprintf("%s %s %d", tx.customer, verb, tx.amount)
}
