package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Common errors for configuration
var (
	ErrNoTellers       = errors.New("at least one teller is required")
	ErrNegativeGrace   = errors.New("grace interval cannot be negative")
	ErrInvalidShutdown = errors.New("shutdown timeout must be > 0")
)

// Config defines the simulation parameters.
type Config struct {
	InitialBalance  int64          `json:"initial_balance"`
	Tellers         int            `json:"tellers"`
	GraceInterval   time.Duration  `json:"grace_interval"`
	ShutdownTimeout time.Duration  `json:"shutdown_timeout"`
	DrainOnShutdown bool           `json:"drain_on_shutdown"`
	Sequential      bool           `json:"sequential"`
	Customers       []CustomerSpec `json:"customers"`
}

// DefaultConfig returns the baseline scenario: 1000 in the bank, two tellers,
// five customers, a two second grace interval and one second to stop.
func DefaultConfig() Config {
	return Config{
		InitialBalance:  1000,
		Tellers:         2,
		GraceInterval:   2 * time.Second,
		ShutdownTimeout: time.Second,
		Customers:       DefaultCustomers(),
	}
}

// DefaultCustomers returns the baseline customer set.
func DefaultCustomers() []CustomerSpec {
	return []CustomerSpec{
		{Name: "Customer 1", Withdrawal: true, Amount: 200},
		{Name: "Customer 2", Withdrawal: false, Amount: 300},
		{Name: "Customer 3", Withdrawal: true, Amount: 500},
		{Name: "Customer 4", Withdrawal: true, Amount: 100},
		{Name: "Customer 5", Withdrawal: false, Amount: 150},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InitialBalance < 0 {
		return ErrNegativeBalance
	}
	if c.Tellers <= 0 {
		return ErrNoTellers
	}
	if c.GraceInterval < 0 {
		return ErrNegativeGrace
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdown
	}
	for i, spec := range c.Customers {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("customer %d: %w", i, err)
		}
	}
	return nil
}

// scenarioFile is the on-disk form of a Config. Durations are Go duration
// strings such as "1500ms"; omitted fields keep their defaults.
type scenarioFile struct {
	InitialBalance  *int64         `json:"initial_balance"`
	Tellers         *int           `json:"tellers"`
	GraceInterval   string         `json:"grace_interval"`
	ShutdownTimeout string         `json:"shutdown_timeout"`
	DrainOnShutdown *bool          `json:"drain_on_shutdown"`
	Sequential      *bool          `json:"sequential"`
	Customers       []CustomerSpec `json:"customers"`
}

// LoadScenario reads a JSON scenario from path and overlays it on base.
func LoadScenario(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data, base)
}

// ParseScenario decodes a JSON scenario and overlays it on base.
func ParseScenario(data []byte, base Config) (Config, error) {
	var sf scenarioFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return base, fmt.Errorf("failed to parse scenario: %w", err)
	}

	cfg := base
	if sf.InitialBalance != nil {
		cfg.InitialBalance = *sf.InitialBalance
	}
	if sf.Tellers != nil {
		cfg.Tellers = *sf.Tellers
	}
	if sf.GraceInterval != "" {
		d, err := time.ParseDuration(sf.GraceInterval)
		if err != nil {
			return base, fmt.Errorf("invalid grace_interval: %w", err)
		}
		cfg.GraceInterval = d
	}
	if sf.ShutdownTimeout != "" {
		d, err := time.ParseDuration(sf.ShutdownTimeout)
		if err != nil {
			return base, fmt.Errorf("invalid shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if sf.DrainOnShutdown != nil {
		cfg.DrainOnShutdown = *sf.DrainOnShutdown
	}
	if sf.Sequential != nil {
		cfg.Sequential = *sf.Sequential
	}
	if sf.Customers != nil {
		cfg.Customers = sf.Customers
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}
