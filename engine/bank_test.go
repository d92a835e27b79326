package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestBank(t *testing.T, cfg Config, reporter Reporter) *Bank {
	t.Helper()
	b, err := NewBank(cfg, WithLogger(quietLogger), WithReporter(reporter))
	if err != nil {
		t.Fatalf("NewBank failed: %v", err)
	}
	return b
}

func runBank(t *testing.T, b *Bank, ctx context.Context) *Result {
	t.Helper()
	res, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func handledIDs(events []Event) map[string]int {
	ids := make(map[string]int)
	for _, ev := range events {
		if ev.Kind == EventProcessed || ev.Kind == EventRejected {
			ids[ev.Tx.ID()]++
		}
	}
	return ids
}

func checkConserved(t *testing.T, res *Result) {
	t.Helper()
	if want := res.InitialBalance + res.Ledger.Deposited - res.Ledger.Withdrawn; res.FinalBalance != want {
		t.Errorf("Final balance %d, expected conserved %d", res.FinalBalance, want)
	}
}

func TestBankBaselineScenario(t *testing.T) {
	for i := 0; i < 10; i++ {
		cfg := DefaultConfig()
		cfg.GraceInterval = 100 * time.Millisecond

		rec := NewRecorder()
		res := runBank(t, newTestBank(t, cfg, rec), context.Background())

		if res.FinalBalance < 650 || res.FinalBalance > 1450 {
			t.Errorf("Final balance %d outside [650, 1450]", res.FinalBalance)
		}
		if res.Ledger.Deposited != 450 {
			t.Errorf("Expected every deposit to succeed (450), got %d", res.Ledger.Deposited)
		}
		checkConserved(t, res)
		if res.Submitted != 5 || res.Processed+res.Rejected != 5 {
			t.Errorf("Expected 5 submitted and handled, got submitted=%d processed=%d rejected=%d",
				res.Submitted, res.Processed, res.Rejected)
		}
		if res.Abandoned != 0 || res.TimedOut {
			t.Errorf("Unexpected abandoned=%d timedOut=%v", res.Abandoned, res.TimedOut)
		}
		if res.Ledger.LowWater < 0 {
			t.Errorf("Balance went negative: %d", res.Ledger.LowWater)
		}
		if n := len(rec.Filter(EventQueued)); n != 5 {
			t.Errorf("Expected 5 queued events, got %d", n)
		}
		if n := len(rec.Filter(EventStopped)); n != 2 {
			t.Errorf("Expected 2 stopped events, got %d", n)
		}
	}
}

func TestBankSequentialSingleTeller(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tellers = 1
	cfg.Sequential = true
	cfg.GraceInterval = 100 * time.Millisecond

	rec := NewRecorder()
	res := runBank(t, newTestBank(t, cfg, rec), context.Background())

	// 1000 - 200 + 300 - 500 - 100 + 150
	if res.FinalBalance != 650 {
		t.Errorf("Expected final balance 650, got %d", res.FinalBalance)
	}
	if res.Processed != 5 || res.Rejected != 0 {
		t.Errorf("Expected 5 processed and 0 rejected, got %d and %d", res.Processed, res.Rejected)
	}

	processed := rec.Filter(EventProcessed)
	if len(processed) != 5 {
		t.Fatalf("Expected 5 processed events, got %d", len(processed))
	}
	wantBalances := []int64{800, 1100, 600, 500, 650}
	for i, ev := range processed {
		if want := fmt.Sprintf("Customer %d", i+1); ev.Tx.Customer() != want {
			t.Errorf("Event %d: expected %s, got %s", i, want, ev.Tx.Customer())
		}
		if ev.Balance != wantBalances[i] {
			t.Errorf("Event %d: expected balance %d, got %d", i, wantBalances[i], ev.Balance)
		}
	}
}

func TestBankContendedWithdrawals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBalance = 100
	cfg.Tellers = 4
	cfg.GraceInterval = 200 * time.Millisecond
	cfg.Customers = nil
	for i := 0; i < 10; i++ {
		cfg.Customers = append(cfg.Customers, CustomerSpec{
			Name: fmt.Sprintf("Customer %d", i+1), Withdrawal: true, Amount: 30,
		})
	}

	res := runBank(t, newTestBank(t, cfg, nil), context.Background())

	if res.Processed != 3 || res.Rejected != 7 {
		t.Errorf("Expected 3 processed and 7 rejected, got %d and %d", res.Processed, res.Rejected)
	}
	if res.FinalBalance != 10 {
		t.Errorf("Expected final balance 10, got %d", res.FinalBalance)
	}
	if res.Ledger.Rejected != 7 {
		t.Errorf("Expected ledger to count 7 rejections, got %d", res.Ledger.Rejected)
	}
}

func TestBankZeroGraceTerminates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tellers = 1
	cfg.GraceInterval = 0
	cfg.ShutdownTimeout = 500 * time.Millisecond
	cfg.Customers = nil
	for i := 0; i < 500; i++ {
		cfg.Customers = append(cfg.Customers, CustomerSpec{
			Name: fmt.Sprintf("Customer %d", i+1), Withdrawal: i%2 == 0, Amount: 10,
		})
	}

	rec := NewRecorder()
	slow := ReporterFunc(func(ev Event) {
		if ev.Kind == EventProcessed || ev.Kind == EventRejected {
			time.Sleep(2 * time.Millisecond)
		}
	})

	start := time.Now()
	res := runBank(t, newTestBank(t, cfg, MultiReporter{rec, slow}), context.Background())

	if elapsed := time.Since(start); elapsed >= cfg.ShutdownTimeout+time.Second {
		t.Errorf("Run took %v", elapsed)
	}
	if res.TimedOut {
		t.Error("Expected tellers to stop within the shutdown timeout")
	}
	if res.Abandoned <= 0 {
		t.Error("Zero grace should leave work queued")
	}

	handled := int64(len(handledIDs(rec.Events())))
	if res.Processed+res.Rejected != handled {
		t.Errorf("Expected %d handled, events show %d", res.Processed+res.Rejected, handled)
	}
	if res.Submitted != int(handled)+res.Abandoned {
		t.Errorf("Submitted %d != handled %d + abandoned %d", res.Submitted, handled, res.Abandoned)
	}
	checkConserved(t, res)
}

func TestBankDrainOnShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tellers = 2
	cfg.GraceInterval = 0
	cfg.DrainOnShutdown = true
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.Customers = nil
	for i := 0; i < 300; i++ {
		cfg.Customers = append(cfg.Customers, CustomerSpec{
			Name: fmt.Sprintf("Customer %d", i+1), Withdrawal: i%3 == 0, Amount: 25,
		})
	}

	rec := NewRecorder()
	res := runBank(t, newTestBank(t, cfg, rec), context.Background())

	if res.Abandoned != 0 {
		t.Errorf("Expected nothing abandoned, got %d", res.Abandoned)
	}
	if res.Processed+res.Rejected != 300 {
		t.Errorf("Expected 300 handled, got %d", res.Processed+res.Rejected)
	}
	for id, n := range handledIDs(rec.Events()) {
		if n != 1 {
			t.Errorf("Transaction %s handled %d times", id, n)
		}
	}
}

func TestBankNoDoubleProcessing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBalance = 5000
	cfg.Tellers = 8
	cfg.GraceInterval = 500 * time.Millisecond
	cfg.Customers = nil
	for i := 0; i < 1000; i++ {
		cfg.Customers = append(cfg.Customers, CustomerSpec{
			Name: fmt.Sprintf("Customer %d", i+1), Withdrawal: i%2 == 1, Amount: int64(i%50 + 1),
		})
	}

	rec := NewRecorder()
	res := runBank(t, newTestBank(t, cfg, rec), context.Background())

	ids := handledIDs(rec.Events())
	if len(ids) != 1000 {
		t.Errorf("Expected every transaction attempted, got %d", len(ids))
	}
	for id, n := range ids {
		if n != 1 {
			t.Errorf("Transaction %s handled %d times", id, n)
		}
	}
	if res.Ledger.LowWater < 0 {
		t.Errorf("Balance went negative: %d", res.Ledger.LowWater)
	}
	checkConserved(t, res)
}

func TestBankCancelledContext(t *testing.T) {
	cfg := DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := runBank(t, newTestBank(t, cfg, nil), ctx)

	if elapsed := time.Since(start); elapsed >= cfg.GraceInterval {
		t.Errorf("Grace should be skipped once ctx is done, took %v", elapsed)
	}
	if res.Submitted != 5 || res.Abandoned != 5 {
		t.Errorf("Expected 5 submitted and abandoned, got %d and %d", res.Submitted, res.Abandoned)
	}
	if res.FinalBalance != 1000 {
		t.Errorf("Expected untouched balance 1000, got %d", res.FinalBalance)
	}
}

func TestBankRunTwice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraceInterval = 0

	b := newTestBank(t, cfg, nil)
	runBank(t, b, context.Background())

	if _, err := b.Run(context.Background()); !errors.Is(err, ErrPoolStarted) {
		t.Errorf("Expected ErrPoolStarted, got %v", err)
	}
}

func TestBankConsoleOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tellers = 1
	cfg.Sequential = true
	cfg.GraceInterval = 100 * time.Millisecond

	var buf bytes.Buffer
	runBank(t, newTestBank(t, cfg, NewConsoleReporter(&buf)), context.Background())

	out := buf.String()
	for _, line := range []string{
		"Customer 1 queued: Customer 1 withdrew 200",
		"Customer 2 queued: Customer 2 deposited 300",
		"Teller-1 processed: Customer 3 withdrew 500",
		"Teller-1 processed: Customer 5 deposited 150",
		"Teller-1 stopped.",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("Output missing %q:\n%s", line, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 11 {
		t.Errorf("Expected 11 lines, got %d", n)
	}
}

func TestNewBankInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tellers = 0

	if _, err := NewBank(cfg); !errors.Is(err, ErrNoTellers) {
		t.Errorf("Expected ErrNoTellers, got %v", err)
	}
}
