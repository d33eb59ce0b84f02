// Package app wires configuration into the running engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arb-engine/internal/alerting"
	"arb-engine/internal/config"
	"arb-engine/internal/executor"
	"arb-engine/internal/fetcher"
	"arb-engine/internal/market"
	"arb-engine/internal/metrics"
	"arb-engine/internal/ranker"
	"arb-engine/internal/relay"
	"arb-engine/internal/route"
	"arb-engine/internal/scheduler"
	"arb-engine/internal/service"
	"arb-engine/internal/storage"
)

// Mode selects how far the pipeline runs and where submissions go.
type Mode int

const (
	// ModeRun executes decisions against the configured relay.
	ModeRun Mode = iota
	// ModeScan stops after routing; nothing is submitted.
	ModeScan
	// ModeSimulate executes the full lifecycle against a dry-run submitter.
	ModeSimulate
)

// App owns the wired component graph and its teardown order.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger
	mode   Mode

	audit       *storage.Store
	gas         *fetcher.GasOracle
	coordinator *executor.Coordinator
	engine      *service.Engine
	metrics     *metrics.Metrics
	alerts      *alerting.Dispatcher
}

// New builds the component graph. Fails fast on anything that would
// otherwise fail mid-cycle: bad pairs, bad keys, unreachable database.
func New(cfg *config.Config, mode Mode, logger zerolog.Logger) (*App, error) {
	pairs, err := parsePairs(cfg.Engine.Pairs)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("app: no token pairs configured")
	}
	if len(cfg.Venues) < 2 {
		return nil, fmt.Errorf("app: need at least 2 venues, have %d", len(cfg.Venues))
	}

	openCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	audit, err := storage.Open(openCtx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	alerts := alerting.NewDispatcher(cfg.Alerting, logger)
	gas := fetcher.NewGasOracle(cfg.Ethereum, logger)

	quoteClient := fetcher.NewQuoteClient(cfg.Fetch, logger)
	store := market.NewStore(quoteClient, cfg.Venues, pairs, cfg.Engine.Concurrency, logger)

	rk := ranker.New(ranker.Options{
		Slippage:           decimal.NewFromFloat(cfg.Engine.SlippageTolerance),
		Fee:                decimal.NewFromFloat(cfg.Engine.TransactionFee),
		GasCost:            decimal.NewFromFloat(cfg.Engine.GasCost),
		LiquidityThreshold: decimal.NewFromFloat(cfg.Engine.LiquidityThreshold),
		Notional:           decimal.NewFromFloat(cfg.Engine.Notional),
		Triangular:         cfg.Engine.Triangular,
		MaxQuoteAge:        cfg.Scheduler.Interval,
	}, logger)

	selector := route.New(route.Options{
		Venues:               cfg.Venues,
		Bridges:              cfg.Bridges,
		Weights:              cfg.Weights,
		Recipient:            cfg.Ethereum.Recipient,
		MaxLiquidityFraction: decimal.NewFromFloat(cfg.Engine.MaxLiquidityFraction),
	}, gas, logger)

	submitter, err := buildSubmitter(cfg, mode, logger)
	if err != nil {
		audit.Close()
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		mode:    mode,
		audit:   audit,
		gas:     gas,
		metrics: m,
		alerts:  alerts,
	}

	a.coordinator = executor.New(executor.Options{
		TargetBlockOffset:   cfg.Relay.TargetBlockOffset,
		AttemptDeadline:     cfg.Relay.AttemptDeadline,
		ConfirmPollInterval: cfg.Relay.ConfirmPollInterval,
	}, submitter, a.onAttemptTerminal, logger)

	a.engine = service.New(service.Options{
		HomeChainID: homeChainID(cfg.Venues),
		Execute:     mode != ModeScan,
	}, store, rk, selector, a.coordinator, gas, audit, m, logger)

	return a, nil
}

func buildSubmitter(cfg *config.Config, mode Mode, logger zerolog.Logger) (executor.Submitter, error) {
	if mode != ModeRun || cfg.Relay.DryRun || cfg.Relay.BaseURL == "" {
		return relay.NewDryRunSubmitter(logger), nil
	}
	signer, err := relay.NewSigner(cfg.Ethereum.PrivateKey)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("signer", signer.Address().Hex()).Msg("relay signer ready")
	return relay.NewClient(cfg.Relay, signer, cfg.Ethereum.ContractAddress, logger), nil
}

// onAttemptTerminal fans a finished attempt out to metrics, audit, and
// alerting. Runs on the attempt's own goroutine.
func (a *App) onAttemptTerminal(attempt executor.Attempt) {
	a.metrics.AttemptsByState.WithLabelValues(string(attempt.State)).Inc()
	a.metrics.AttemptsInFlight.Set(float64(a.coordinator.InFlight()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.audit.UpsertAttempt(ctx, service.AttemptRecord(attempt)); err != nil {
		a.logger.Warn().Err(err).Str("attempt_id", attempt.ID).Msg("attempt audit write failed")
	}
	a.alerts.AttemptFinished(ctx, attempt)
}

// Run drives the periodic loop until the context is cancelled, then drains
// in-flight attempts before tearing the graph down.
func (a *App) Run(ctx context.Context) error {
	if listen := a.cfg.Metrics.Listen; listen != "" {
		go func() {
			if err := a.metrics.Serve(ctx, listen, a.logger); err != nil {
				a.logger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	sched := scheduler.New(a.cfg.Scheduler, a.logger)
	err := sched.Run(ctx, a.engine.Cycle)

	a.logger.Info().Msg("draining in-flight attempts")
	a.coordinator.Wait()
	a.Close()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// RunOnce executes a single cycle and returns its report. Used by the scan
// and simulate commands.
func (a *App) RunOnce(ctx context.Context) (service.CycleReport, error) {
	report, err := a.engine.RunOnce(ctx, time.Now())
	if a.mode == ModeSimulate {
		a.coordinator.Wait()
	}
	return report, err
}

// Audit exposes the audit store for read-only CLI commands. Nil when the
// store is disabled.
func (a *App) Audit() *storage.Store {
	return a.audit
}

// Attempts exposes the in-memory attempt table.
func (a *App) Attempts() []executor.Attempt {
	return a.coordinator.Attempts()
}

// Close releases external resources. Safe to call more than once.
func (a *App) Close() {
	a.gas.Close()
	a.audit.Close()
}

func parsePairs(raw []string) ([]market.TokenPair, error) {
	pairs := make([]market.TokenPair, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		pair, err := market.ParsePair(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[pair.String()]; dup {
			continue
		}
		seen[pair.String()] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// homeChainID picks the snapshot-stamping chain: the first venue's chain.
func homeChainID(venues []config.VenueConfig) int64 {
	if len(venues) == 0 {
		return 1
	}
	return venues[0].ChainID
}
