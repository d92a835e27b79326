package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VanDung-dev/teller-bank/engine"
	"github.com/VanDung-dev/teller-bank/monitoring"
	"github.com/VanDung-dev/teller-bank/report"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "teller-bank"
)

// options holds the command-line settings that are not part of engine.Config.
type options struct {
	scenario    string
	metricsAddr string
	reportFile  string
	logLevel    string
	version     bool
}

func main() {
	cfg, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.version {
		fmt.Printf("%s v%s\n", Name, Version)
		return
	}

	logger := newLogger(opts.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg engine.Config, opts options, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics("teller_bank", reg)
	metrics.SetBalance(cfg.InitialBalance)

	if opts.metricsAddr != "" {
		server := monitoring.NewMetricsServer(opts.metricsAddr, reg)
		server.StartAsync(nil)
		logger.Info("metrics server started", "addr", opts.metricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	recorder := engine.NewRecorder()
	reporters := engine.MultiReporter{engine.NewConsoleReporter(os.Stdout), metrics}
	if opts.reportFile != "" {
		reporters = append(reporters, recorder)
	}

	bank, err := engine.NewBank(cfg,
		engine.WithLogger(logger),
		engine.WithReporter(reporters),
	)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	res, err := bank.Run(ctx)
	if res != nil {
		fmt.Printf("Final bank balance: %d\n", res.FinalBalance)
	}
	if err != nil {
		return err
	}

	if opts.reportFile != "" {
		if err := report.WriteFile(opts.reportFile, recorder.Events()); err != nil {
			logger.Warn("failed to write report", "file", opts.reportFile, "error", err)
		} else {
			logger.Info("report saved", "file", opts.reportFile)
		}
	}
	return nil
}

// parseFlags builds the config from the defaults, an optional scenario file
// and then any flags given explicitly on the command line.
func parseFlags(args []string) (engine.Config, options, error) {
	defaults := engine.DefaultConfig()
	fs := flag.NewFlagSet(Name, flag.ContinueOnError)

	var (
		opts     options
		balance  = fs.Int64("balance", defaults.InitialBalance, "Initial ledger balance")
		tellers  = fs.Int("tellers", defaults.Tellers, "Number of tellers")
		grace    = fs.Duration("grace", defaults.GraceInterval, "Grace interval for draining the queue")
		shutdown = fs.Duration("shutdown-timeout", defaults.ShutdownTimeout, "Time allowed for tellers to stop")
		drain    = fs.Bool("drain", defaults.DrainOnShutdown, "Drain the queue before cancelling tellers")
		seq      = fs.Bool("sequential", defaults.Sequential, "Submit customers one after another")
	)
	fs.StringVar(&opts.scenario, "scenario", "", "JSON scenario file")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled if empty)")
	fs.StringVar(&opts.reportFile, "report", "", "Write the run's events to this Arrow IPC file")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return defaults, opts, err
	}

	cfg := defaults
	if opts.scenario != "" {
		loaded, err := engine.LoadScenario(opts.scenario, cfg)
		if err != nil {
			return defaults, opts, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "balance":
			cfg.InitialBalance = *balance
		case "tellers":
			cfg.Tellers = *tellers
		case "grace":
			cfg.GraceInterval = *grace
		case "shutdown-timeout":
			cfg.ShutdownTimeout = *shutdown
		case "drain":
			cfg.DrainOnShutdown = *drain
		case "sequential":
			cfg.Sequential = *seq
		}
	})

	return cfg, opts, cfg.Validate()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
