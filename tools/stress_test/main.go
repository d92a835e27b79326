package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/VanDung-dev/teller-bank/engine"
)

// StressTestConfig holds configuration for the stress test.
type StressTestConfig struct {
	Rounds         int
	Customers      int
	Tellers        int
	InitialBalance int64
	MaxAmount      int64
	Grace          time.Duration
	Seed           uint64
	ReportFile     string
}

// StressTestResult holds the results of a stress test.
type StressTestResult struct {
	Rounds         int
	Submitted      int64
	Processed      int64
	Rejected       int64
	Abandoned      int64
	Violations     []string
	TotalDuration  time.Duration
	TxPerSec       float64
	MinFinal       int64
	MaxFinal       int64
	LowestObserved int64
}

func main() {
	config := parseFlags()
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}

	fmt.Println("=== Teller Bank Stress Test ===")
	fmt.Printf("Rounds:    %d\n", config.Rounds)
	fmt.Printf("Customers: %d per round\n", config.Customers)
	fmt.Printf("Tellers:   %d\n", config.Tellers)
	fmt.Printf("Grace:     %v\n", config.Grace)
	fmt.Println()

	result := runStressTest(config)

	printResults(result)

	if config.ReportFile != "" {
		saveReport(config, result)
	}

	if len(result.Violations) > 0 {
		os.Exit(1)
	}
}

func parseFlags() StressTestConfig {
	config := StressTestConfig{}

	flag.IntVar(&config.Rounds, "rounds", 20, "Number of bank runs")
	flag.IntVar(&config.Customers, "customers", 1000, "Customers per run")
	flag.IntVar(&config.Tellers, "tellers", 8, "Tellers per run")
	flag.Int64Var(&config.InitialBalance, "balance", 1000, "Initial balance per run")
	flag.Int64Var(&config.MaxAmount, "max-amount", 500, "Largest transaction amount")
	flag.DurationVar(&config.Grace, "grace", 500*time.Millisecond, "Grace interval per run")
	flag.Uint64Var(&config.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.StringVar(&config.ReportFile, "o", "", "Output report file (JSON)")

	flag.Parse()

	return config
}

// Validate checks the configuration can drive a run.
func (c StressTestConfig) Validate() error {
	switch {
	case c.Rounds < 0:
		return errors.New("rounds must be >= 0")
	case c.Customers <= 0:
		return errors.New("customers must be > 0")
	case c.Tellers <= 0:
		return errors.New("tellers must be > 0")
	case c.InitialBalance < 0:
		return errors.New("balance must be >= 0")
	case c.MaxAmount <= 0:
		return errors.New("max-amount must be > 0")
	case c.Grace < 0:
		return errors.New("grace must be >= 0")
	}
	return nil
}

func runStressTest(config StressTestConfig) StressTestResult {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	result := StressTestResult{
		Rounds:         config.Rounds,
		MinFinal:       1<<63 - 1,
		LowestObserved: 1<<63 - 1,
	}

	startTime := time.Now()
	completed := 0

	for round := 0; round < config.Rounds; round++ {
		cfg := engine.DefaultConfig()
		cfg.InitialBalance = config.InitialBalance
		cfg.Tellers = config.Tellers
		cfg.GraceInterval = config.Grace
		cfg.ShutdownTimeout = 5 * time.Second
		cfg.Customers = randomCustomers(rng, config.Customers, config.MaxAmount)

		recorder := engine.NewRecorder()
		bank, err := engine.NewBank(cfg, engine.WithReporter(recorder))
		if err != nil {
			log.Fatalf("Failed to create bank: %v", err)
		}

		res, err := bank.Run(context.Background())
		if err != nil {
			result.Violations = append(result.Violations, fmt.Sprintf("round %d: %v", round, err))
			continue
		}

		completed++
		result.Submitted += int64(res.Submitted)
		result.Processed += res.Processed
		result.Rejected += res.Rejected
		result.Abandoned += int64(res.Abandoned)
		result.MinFinal = min(result.MinFinal, res.FinalBalance)
		result.MaxFinal = max(result.MaxFinal, res.FinalBalance)
		result.LowestObserved = min(result.LowestObserved, res.Ledger.LowWater)

		result.Violations = append(result.Violations, checkRound(round, res, recorder)...)
	}

	if completed == 0 {
		result.MinFinal = 0
		result.LowestObserved = 0
	}

	result.TotalDuration = time.Since(startTime)
	result.TxPerSec = float64(result.Processed+result.Rejected) / result.TotalDuration.Seconds()
	return result
}

func randomCustomers(rng *rand.Rand, n int, maxAmount int64) []engine.CustomerSpec {
	specs := make([]engine.CustomerSpec, n)
	for i := range specs {
		specs[i] = engine.CustomerSpec{
			Name:       fmt.Sprintf("Customer %d", i+1),
			Withdrawal: rng.IntN(2) == 0,
			Amount:     rng.Int64N(maxAmount) + 1,
		}
	}
	return specs
}

// checkRound verifies the ledger invariants for one run.
func checkRound(round int, res *engine.Result, recorder *engine.Recorder) []string {
	var violations []string

	if res.Ledger.LowWater < 0 {
		violations = append(violations, fmt.Sprintf("round %d: balance went negative (%d)", round, res.Ledger.LowWater))
	}

	if want := res.InitialBalance + res.Ledger.Deposited - res.Ledger.Withdrawn; res.FinalBalance != want {
		violations = append(violations, fmt.Sprintf("round %d: final %d != conserved %d", round, res.FinalBalance, want))
	}

	seen := make(map[string]int)
	var handled int
	for _, ev := range recorder.Events() {
		if ev.Kind == engine.EventProcessed || ev.Kind == engine.EventRejected {
			seen[ev.Tx.ID()]++
			handled++
		}
	}
	for id, n := range seen {
		if n > 1 {
			violations = append(violations, fmt.Sprintf("round %d: transaction %s handled %d times", round, id, n))
		}
	}

	if handled+res.Abandoned != res.Submitted {
		violations = append(violations, fmt.Sprintf("round %d: handled %d + abandoned %d != submitted %d",
			round, handled, res.Abandoned, res.Submitted))
	}

	return violations
}

func printResults(result StressTestResult) {
	fmt.Println("=== Results ===")
	fmt.Printf("Duration:        %v\n", result.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Submitted:       %d\n", result.Submitted)
	fmt.Printf("Processed:       %d\n", result.Processed)
	fmt.Printf("Rejected:        %d\n", result.Rejected)
	fmt.Printf("Abandoned:       %d\n", result.Abandoned)
	fmt.Printf("Tx/sec:          %.2f\n", result.TxPerSec)
	fmt.Printf("Final balance:   %d .. %d\n", result.MinFinal, result.MaxFinal)
	fmt.Printf("Lowest balance:  %d\n", result.LowestObserved)
	fmt.Printf("Violations:      %d\n", len(result.Violations))
	for _, v := range result.Violations {
		fmt.Printf("  - %s\n", v)
	}
}

func saveReport(config StressTestConfig, result StressTestResult) {
	report := map[string]interface{}{
		"config": map[string]interface{}{
			"rounds":          config.Rounds,
			"customers":       config.Customers,
			"tellers":         config.Tellers,
			"initial_balance": config.InitialBalance,
			"grace":           config.Grace.String(),
			"seed":            config.Seed,
		},
		"results": map[string]interface{}{
			"submitted":       result.Submitted,
			"processed":       result.Processed,
			"rejected":        result.Rejected,
			"abandoned":       result.Abandoned,
			"tx_per_sec":      result.TxPerSec,
			"min_final":       result.MinFinal,
			"max_final":       result.MaxFinal,
			"lowest_observed": result.LowestObserved,
			"violations":      result.Violations,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	if err := os.WriteFile(config.ReportFile, data, 0644); err != nil {
		log.Printf("Failed to write report: %v", err)
	} else {
		fmt.Printf("Report saved to: %s\n", config.ReportFile)
	}
}
