// Package metrics exposes engine counters over Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics bundles the engine's instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal         prometheus.Counter
	CycleErrors         prometheus.Counter
	CycleDuration       prometheus.Histogram
	QuotesFetched       prometheus.Counter
	VenueOutages        prometheus.Counter
	OpportunitiesFound  prometheus.Counter
	AttemptsStarted     prometheus.Counter
	AttemptsByState     *prometheus.CounterVec
	AttemptsInFlight    prometheus.Gauge
	BestExpectedProfit  prometheus.Gauge
}

// New builds the instrument set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbengine_cycles_total",
			Help: "Decision cycles executed.",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbengine_cycle_errors_total",
			Help: "Decision cycles that ended in error.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbengine_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		QuotesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbengine_quotes_fetched_total",
			Help: "Quotes successfully fetched across all venues.",
		}),
		VenueOutages: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbengine_venue_outages_total",
			Help: "Per-cycle venue fetch failures.",
		}),
		OpportunitiesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbengine_opportunities_total",
			Help: "Cycles that produced an actionable opportunity.",
		}),
		AttemptsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbengine_attempts_started_total",
			Help: "Execution attempts registered.",
		}),
		AttemptsByState: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbengine_attempts_terminal_total",
			Help: "Execution attempts by terminal state.",
		}, []string{"state"}),
		AttemptsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbengine_attempts_in_flight",
			Help: "Live execution attempts.",
		}),
		BestExpectedProfit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbengine_best_expected_profit",
			Help: "Expected profit of the last selected opportunity.",
		}),
	}
}

// Serve exposes /metrics until the context is cancelled. Blocks.
func (m *Metrics) Serve(ctx context.Context, listen string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("listen", listen).Msg("metrics endpoint started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
