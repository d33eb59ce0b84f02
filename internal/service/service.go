// Package service runs the per-cycle decision pipeline: refresh quotes,
// rank opportunities, resolve a route, and hand the decision to the
// execution coordinator.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"arb-engine/internal/executor"
	"arb-engine/internal/market"
	"arb-engine/internal/metrics"
	"arb-engine/internal/ranker"
	"arb-engine/internal/route"
	"arb-engine/internal/storage"
)

// BlockReader supplies the latest block height for snapshot stamping.
type BlockReader interface {
	BlockNumber(ctx context.Context, chainID int64) (uint64, error)
}

// Executor accepts a resolved decision for execution.
type Executor interface {
	Execute(ctx context.Context, dec route.Decision) (executor.Attempt, error)
	InFlight() int
}

// Selector resolves an opportunity into a trade decision.
type Selector interface {
	Select(ctx context.Context, opp ranker.Opportunity) (route.Decision, error)
}

// CycleReport describes what one cycle saw and did. Scan-mode callers render
// it; the run loop mostly ignores it.
type CycleReport struct {
	Cycle       time.Time
	BlockNumber uint64
	QuoteCount  int
	OutageCount int
	Opportunity *ranker.Opportunity
	Decision    *route.Decision
	Attempt     *executor.Attempt
}

// Options configure the engine pipeline.
type Options struct {
	// HomeChainID is the chain whose block height stamps each snapshot.
	HomeChainID int64
	// Execute gates the final pipeline stage. Scan mode stops after routing.
	Execute bool
}

// Engine is the cycle pipeline. All collaborators are injected; the engine
// itself holds no mutable state between cycles.
type Engine struct {
	opts     Options
	store    *market.Store
	ranker   *ranker.Ranker
	selector Selector
	exec     Executor
	blocks   BlockReader
	audit    *storage.Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New constructs an Engine. audit may be nil (disabled); metrics must not be.
func New(opts Options, store *market.Store, rk *ranker.Ranker, selector Selector, exec Executor, blocks BlockReader, audit *storage.Store, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		opts:     opts,
		store:    store,
		ranker:   rk,
		selector: selector,
		exec:     exec,
		blocks:   blocks,
		audit:    audit,
		metrics:  m,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Cycle runs one full decision cycle. Opportunity-free cycles and duplicate
// decisions are normal outcomes, not errors; only infrastructure failures
// propagate.
func (e *Engine) Cycle(ctx context.Context, cycle time.Time) error {
	_, err := e.RunOnce(ctx, cycle)
	return err
}

// RunOnce is Cycle with the full report exposed, for scan and simulate.
func (e *Engine) RunOnce(ctx context.Context, cycle time.Time) (CycleReport, error) {
	started := time.Now()
	e.metrics.CyclesTotal.Inc()
	defer func() {
		e.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		e.metrics.AttemptsInFlight.Set(float64(e.exec.InFlight()))
	}()

	report := CycleReport{Cycle: cycle}

	report.BlockNumber = e.blockNumber(ctx)

	snap, err := e.store.Refresh(ctx, cycle, report.BlockNumber)
	var partial *market.PartialFetchError
	switch {
	case errors.As(err, &partial):
		e.logger.Warn().Int("outages", len(partial.Outages)).Msg("cycle running on partial quote set")
	case errors.Is(err, market.ErrNoQuotes):
		e.metrics.CycleErrors.Inc()
		e.recordCycle(report, started, false, ranker.Opportunity{})
		return report, err
	case err != nil:
		e.metrics.CycleErrors.Inc()
		return report, err
	}

	report.QuoteCount = countQuotes(snap)
	report.OutageCount = len(snap.Outages)
	e.metrics.QuotesFetched.Add(float64(report.QuoteCount))
	e.metrics.VenueOutages.Add(float64(report.OutageCount))

	opp, err := e.ranker.Rank(snap)
	if err != nil {
		if errors.Is(err, ranker.ErrNoOpportunity) {
			e.logger.Debug().Time("cycle", cycle).Msg("no opportunity this cycle")
			e.recordCycle(report, started, false, ranker.Opportunity{})
			return report, nil
		}
		e.metrics.CycleErrors.Inc()
		return report, err
	}
	report.Opportunity = &opp
	e.metrics.OpportunitiesFound.Inc()
	e.metrics.BestExpectedProfit.Set(opp.ExpectedProfit.InexactFloat64())

	dec, err := e.selector.Select(ctx, opp)
	if err != nil {
		if errors.Is(err, route.ErrNoBridge) {
			e.logger.Warn().
				Str("pair", opp.Pair.String()).
				Str("path", opp.VenuePath()).
				Msg("opportunity dropped, no route")
			e.recordCycle(report, started, true, opp)
			return report, nil
		}
		e.metrics.CycleErrors.Inc()
		return report, err
	}
	report.Decision = &dec

	if !e.opts.Execute {
		e.recordCycle(report, started, true, opp)
		return report, nil
	}

	attempt, err := e.exec.Execute(ctx, dec)
	if err != nil {
		if errors.Is(err, executor.ErrDuplicateInFlight) {
			e.logger.Debug().
				Str("pair", opp.Pair.String()).
				Str("path", opp.VenuePath()).
				Msg("decision suppressed, attempt already in flight")
			e.recordCycle(report, started, true, opp)
			return report, nil
		}
		e.metrics.CycleErrors.Inc()
		return report, err
	}
	report.Attempt = &attempt
	e.metrics.AttemptsStarted.Inc()

	e.recordCycle(report, started, true, opp)
	e.recordAttempt(attempt)
	return report, nil
}

func (e *Engine) blockNumber(ctx context.Context) uint64 {
	if e.blocks == nil {
		return 0
	}
	height, err := e.blocks.BlockNumber(ctx, e.opts.HomeChainID)
	if err != nil {
		// Snapshot stamping is best-effort; dedup falls back to bucket 0.
		e.logger.Warn().Err(err).Msg("block height unavailable")
		return 0
	}
	return height
}

func (e *Engine) recordCycle(report CycleReport, started time.Time, found bool, opp ranker.Opportunity) {
	rec := storage.CycleRecord{
		Cycle:            report.Cycle,
		BlockNumber:      report.BlockNumber,
		QuoteCount:       report.QuoteCount,
		OutageCount:      report.OutageCount,
		OpportunityFound: found,
		Elapsed:          time.Since(started),
	}
	if found {
		rec.Pair = opp.Pair.String()
		rec.VenuePath = opp.VenuePath()
		rec.ExpectedProfit = opp.ExpectedProfit
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.audit.InsertCycle(ctx, rec); err != nil {
		e.logger.Warn().Err(err).Msg("cycle audit write failed")
	}
}

func (e *Engine) recordAttempt(a executor.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.audit.UpsertAttempt(ctx, AttemptRecord(a)); err != nil {
		e.logger.Warn().Err(err).Msg("attempt audit write failed")
	}
}

// AttemptRecord flattens an attempt into its storage shape.
func AttemptRecord(a executor.Attempt) storage.AttemptRecord {
	rec := storage.AttemptRecord{
		ID:             a.ID,
		Key:            a.Key,
		Pair:           a.Decision.Opportunity.Pair.String(),
		VenuePath:      a.Decision.Opportunity.VenuePath(),
		SwapVenue:      a.Decision.SwapVenue,
		AmountIn:       a.Decision.AmountIn,
		ExpectedProfit: a.Decision.Opportunity.ExpectedProfit,
		TargetBlock:    a.TargetBlock,
		State:          string(a.State),
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.Decision.Bridge != nil {
		rec.Bridge = a.Decision.Bridge.Name
	}
	return rec
}

func countQuotes(snap market.Snapshot) int {
	n := 0
	for _, quotes := range snap.Quotes {
		n += len(quotes)
	}
	return n
}
