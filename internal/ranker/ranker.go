// Package ranker enumerates candidate venue pairs and triangular paths per
// token pair, scores them through the profit model, and selects the single
// best actionable opportunity for the cycle.
package ranker

import (
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arb-engine/internal/market"
	"arb-engine/internal/profit"
)

// ErrNoOpportunity indicates the cycle produced no profitable candidate.
// Normal outcome, not a failure.
var ErrNoOpportunity = errors.New("ranker: no profitable opportunity")

// Options hold the filters and cost assumptions applied to every candidate.
type Options struct {
	Slippage           decimal.Decimal
	Fee                decimal.Decimal
	GasCost            decimal.Decimal
	LiquidityThreshold decimal.Decimal
	Notional           decimal.Decimal
	Triangular         bool
	// MaxQuoteAge rejects quotes observed more than this long before the
	// cycle stamp. Zero disables the check (trusted snapshots).
	MaxQuoteAge time.Duration
}

// Ranker selects the best opportunity from a cycle snapshot. Evaluation is
// pure and deterministic: the same snapshot and options always yield the
// same selection.
type Ranker struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Ranker.
func New(opts Options, logger zerolog.Logger) *Ranker {
	return &Ranker{opts: opts, logger: logger.With().Str("component", "ranker").Logger()}
}

// Rank returns the single global best opportunity across all pairs, venue
// pair directions, and triangular paths, or ErrNoOpportunity. Only one trade
// executes per cycle, so per-pair lists are never materialised.
func (r *Ranker) Rank(snap market.Snapshot) (Opportunity, error) {
	var best Opportunity
	found := false

	consider := func(cand Opportunity) {
		// Strictly-greater replacement keeps the first-found on ties,
		// which together with sorted iteration makes selection stable.
		if cand.ExpectedProfit.Sign() <= 0 {
			return
		}
		if !found || cand.ExpectedProfit.GreaterThan(best.ExpectedProfit) {
			best = cand
			found = true
		}
	}

	pairKeys := make([]string, 0, len(snap.Quotes))
	for key := range snap.Quotes {
		pairKeys = append(pairKeys, key)
	}
	sort.Strings(pairKeys)

	for _, key := range pairKeys {
		quotes := r.usable(snap, snap.Quotes[key])
		if len(quotes) < 2 {
			continue
		}
		r.rankVenuePairs(snap, quotes, consider)
	}

	if r.opts.Triangular {
		r.rankTriangles(snap, pairKeys, consider)
	}

	if !found {
		return Opportunity{}, ErrNoOpportunity
	}

	r.logger.Debug().
		Str("pair", best.Pair.String()).
		Str("path", best.VenuePath()).
		Str("expected_profit", best.ExpectedProfit.String()).
		Msg("best opportunity selected")

	return best, nil
}

// usable applies the cheap filters before any profit computation: liquidity
// threshold and quote staleness.
func (r *Ranker) usable(snap market.Snapshot, quotes []market.Quote) []market.Quote {
	out := make([]market.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Liquidity.LessThan(r.opts.LiquidityThreshold) {
			continue
		}
		if r.opts.MaxQuoteAge > 0 && !q.Timestamp.IsZero() && snap.Cycle.Sub(q.Timestamp) > r.opts.MaxQuoteAge {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

func (r *Ranker) rankVenuePairs(snap market.Snapshot, quotes []market.Quote, consider func(Opportunity)) {
	// Every unordered venue pair, both directions: a venue's low/high role
	// is not fixed.
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			r.considerDirection(snap, quotes[i], quotes[j], consider)
			r.considerDirection(snap, quotes[j], quotes[i], consider)
		}
	}
}

func (r *Ranker) considerDirection(snap market.Snapshot, buy, sell market.Quote, consider func(Opportunity)) {
	net, viable := profit.Pair(buy.Price, sell.Price, r.opts.Slippage, r.opts.Slippage, r.opts.Fee, r.opts.GasCost)
	if !viable {
		return
	}
	consider(Opportunity{
		Kind: KindVenuePair,
		Pair: buy.Pair,
		Legs: []Leg{
			{Venue: buy.Venue, ChainID: buy.ChainID, Pair: buy.Pair, Side: SideBuy, Price: buy.Price, Liquidity: buy.Liquidity},
			{Venue: sell.Venue, ChainID: sell.ChainID, Pair: sell.Pair, Side: SideSell, Price: sell.Price, Liquidity: sell.Liquidity},
		},
		Notional:       r.opts.Notional,
		ExpectedProfit: net,
		Slippage:       r.opts.Slippage,
		Fee:            r.opts.Fee,
		GasCost:        r.opts.GasCost,
		Cycle:          snap.Cycle,
		BlockNumber:    snap.BlockNumber,
	})
}
