// Package monitoring provides Prometheus metrics for the teller bank.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VanDung-dev/teller-bank/engine"
)

// Metrics holds all Prometheus metrics for the bank. It implements
// engine.Reporter, so it can be attached to a Bank next to the console.
type Metrics struct {
	// Transaction metrics
	TransactionsQueued    *prometheus.CounterVec
	TransactionsProcessed *prometheus.CounterVec
	TransactionsRejected  prometheus.Counter
	QueueWait             prometheus.Histogram

	// System metrics
	Balance        prometheus.Gauge
	QueueDepth     prometheus.Gauge
	TellersStopped prometheus.Counter
}

// NewMetrics creates the metrics under namespace and registers them with reg.
// A nil reg leaves the metrics unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_queued_total",
			Help:      "Total number of transactions submitted by customers",
		}, []string{"kind"}),
		TransactionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_processed_total",
			Help:      "Total number of transactions applied to the ledger",
		}, []string{"kind"}),
		TransactionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_rejected_total",
			Help:      "Total number of withdrawals refused for insufficient funds",
		}),
		QueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_queue_wait_seconds",
			Help:      "Time from transaction creation until a teller handled it",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
		}),

		Balance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_balance",
			Help:      "Ledger balance after the most recent transaction",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Queue length sampled at the most recent event",
		}),
		TellersStopped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tellers_stopped_total",
			Help:      "Number of tellers that have stopped",
		}),
	}
}

// Report records a bank event.
func (m *Metrics) Report(ev engine.Event) {
	switch ev.Kind {
	case engine.EventQueued:
		m.TransactionsQueued.WithLabelValues(ev.Tx.Kind().String()).Inc()
		m.QueueDepth.Set(float64(ev.Pending))
	case engine.EventProcessed:
		m.TransactionsProcessed.WithLabelValues(ev.Tx.Kind().String()).Inc()
		m.handled(ev)
	case engine.EventRejected:
		m.TransactionsRejected.Inc()
		m.handled(ev)
	case engine.EventStopped:
		m.TellersStopped.Inc()
		m.QueueDepth.Set(float64(ev.Pending))
	}
}

func (m *Metrics) handled(ev engine.Event) {
	m.QueueDepth.Set(float64(ev.Pending))
	m.Balance.Set(float64(ev.Balance))
	if !ev.Tx.CreatedAt().IsZero() {
		m.QueueWait.Observe(ev.At.Sub(ev.Tx.CreatedAt()).Seconds())
	}
}

// SetBalance sets the balance gauge directly, e.g. at start-up.
func (m *Metrics) SetBalance(balance int64) {
	m.Balance.Set(float64(balance))
}

// MetricsServer runs an HTTP server exposing /metrics and /health.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics server on addr serving the metrics
// gathered from g.
func NewMetricsServer(addr string, g prometheus.Gatherer) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's HTTP handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics server (blocking).
func (s *MetricsServer) Start() error {
	return s.server.ListenAndServe()
}

// StartAsync starts the metrics server in a goroutine. errs receives the
// serve error unless the server was stopped normally; it may be nil.
func (s *MetricsServer) StartAsync(errs chan<- error) {
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed && errs != nil {
			errs <- err
		}
	}()
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
