package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess        = "success"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

// Metrics instruments a benchmark run. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// RequestsTotal counts attempts by outcome and status code
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks attempt latency by outcome
	RequestDuration *prometheus.HistogramVec

	// TransportErrors counts failures that produced no status, by category
	TransportErrors *prometheus.CounterVec

	// Inflight is the number of requests currently awaiting a response
	Inflight prometheus.Gauge
}

// New registers the benchmark metrics on reg. Each run label is a constant
// label so that several runs can share a process-wide registry.
func New(reg prometheus.Registerer, runID string) *Metrics {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, reg))

	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infbench_requests_total",
				Help: "Total number of inference requests by outcome and status code",
			},
			[]string{"outcome", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "infbench_request_duration_seconds",
				Help:    "Duration of inference requests by outcome",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
			},
			[]string{"outcome"},
		),
		TransportErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infbench_transport_errors_total",
				Help: "Total number of requests that failed before a status code was received",
			},
			[]string{"category"},
		),
		Inflight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "infbench_requests_inflight",
				Help: "Number of requests awaiting a response",
			},
		),
	}
}

func (m *Metrics) Observe(status int, success bool, category string, latency time.Duration) {
	if m == nil {
		return
	}

	outcome := OutcomeHTTPError
	switch {
	case success:
		outcome = OutcomeSuccess
	case category != "":
		outcome = OutcomeTransportError
		m.TransportErrors.WithLabelValues(category).Inc()
	}

	m.RequestsTotal.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(outcome).Observe(latency.Seconds())
}

func (m *Metrics) IncInflight() {
	if m != nil {
		m.Inflight.Inc()
	}
}

func (m *Metrics) DecInflight() {
	if m != nil {
		m.Inflight.Dec()
	}
}

// Serve exposes reg on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
