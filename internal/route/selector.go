// Package route resolves a selected opportunity into a fully-specified trade
// intent: execution venue, optional bridge, recipient, and sizing.
package route

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arb-engine/internal/config"
	"arb-engine/internal/ranker"
)

// ErrNoBridge indicates a cross-chain opportunity has no available bridge
// covering both chains.
var ErrNoBridge = errors.New("route: no available bridge for chain pair")

var gweiPerWei = decimal.NewFromInt(1_000_000_000)

// BridgeChoice names the winning bridge and its score, for audit logs.
type BridgeChoice struct {
	Name  string
	Score float64
}

// Decision is the trade intent consumed exactly once by the execution
// coordinator. A nil Bridge means all legs settle on one chain.
type Decision struct {
	Opportunity ranker.Opportunity
	SwapVenue   string
	Bridge      *BridgeChoice
	Recipient   string
	AmountIn    decimal.Decimal
}

// GasOracle supplies best-effort gas prices in wei for scoring.
type GasOracle interface {
	GasPrice(ctx context.Context, chainID int64) (decimal.Decimal, error)
}

// Options parameterise the selector.
type Options struct {
	Venues               []config.VenueConfig
	Bridges              []config.BridgeConfig
	Weights              config.WeightsConfig
	Recipient            string
	MaxLiquidityFraction decimal.Decimal
}

// Selector turns opportunities into route decisions.
type Selector struct {
	opts   Options
	gas    GasOracle
	venues map[string]config.VenueConfig
	logger zerolog.Logger
}

// New constructs a Selector.
func New(opts Options, gas GasOracle, logger zerolog.Logger) *Selector {
	venues := make(map[string]config.VenueConfig, len(opts.Venues))
	for _, v := range opts.Venues {
		venues[v.Name] = v
	}
	return &Selector{
		opts:   opts,
		gas:    gas,
		venues: venues,
		logger: logger.With().Str("component", "route_selector").Logger(),
	}
}

// Select resolves venue, bridge, and sizing for an opportunity.
func (s *Selector) Select(ctx context.Context, opp ranker.Opportunity) (Decision, error) {
	if len(opp.Legs) < 2 {
		return Decision{}, fmt.Errorf("route: opportunity has %d legs, need at least 2", len(opp.Legs))
	}

	decision := Decision{
		Opportunity: opp,
		SwapVenue:   s.pickSwapVenue(ctx, opp),
		Recipient:   s.opts.Recipient,
		AmountIn:    s.size(opp),
	}

	if opp.CrossChain() {
		choice, err := s.pickBridge(ctx, opp.Legs[0].ChainID, opp.Legs[len(opp.Legs)-1].ChainID)
		if err != nil {
			return Decision{}, err
		}
		decision.Bridge = &choice
	}

	s.logger.Debug().
		Str("pair", opp.Pair.String()).
		Str("swap_venue", decision.SwapVenue).
		Bool("cross_chain", decision.Bridge != nil).
		Str("amount_in", decision.AmountIn.String()).
		Msg("route resolved")

	return decision, nil
}

// pickSwapVenue scores each leg's venue with the swap weight table and takes
// the cheapest as the execution venue.
func (s *Selector) pickSwapVenue(ctx context.Context, opp ranker.Opportunity) string {
	type scored struct {
		name  string
		score float64
	}
	candidates := make([]scored, 0, len(opp.Legs))
	seen := make(map[string]struct{}, len(opp.Legs))

	for _, leg := range opp.Legs {
		if _, dup := seen[leg.Venue]; dup {
			continue
		}
		seen[leg.Venue] = struct{}{}

		cand := Candidate{
			Name:      leg.Venue,
			GasPrice:  s.gasPriceGwei(ctx, leg.ChainID),
			Liquidity: scarcity(leg.Liquidity),
		}
		if vc, ok := s.venues[leg.Venue]; ok {
			cand.Extras = vc.TakerFeeBps
		}
		candidates = append(candidates, scored{name: leg.Venue, score: Score(cand, s.opts.Weights.Swap)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates[0].name
}

// pickBridge excludes unavailable bridges before scoring, then scores the
// rest on gas, fee, and latency with the bridge weight table.
func (s *Selector) pickBridge(ctx context.Context, srcChain, dstChain int64) (BridgeChoice, error) {
	best := BridgeChoice{}
	found := false

	for _, bridge := range s.opts.Bridges {
		if !bridge.Available {
			continue
		}
		if !supportsChain(bridge, srcChain) || !supportsChain(bridge, dstChain) {
			continue
		}

		score := Score(Candidate{
			Name:     bridge.Name,
			GasPrice: s.gasPriceGwei(ctx, dstChain),
			Fee:      bridge.FeeUSD,
			Latency:  bridge.LatencySec,
		}, s.opts.Weights.Bridge)

		if !found || score < best.Score || (score == best.Score && bridge.Name < best.Name) {
			best = BridgeChoice{Name: bridge.Name, Score: score}
			found = true
		}
	}

	if !found {
		return BridgeChoice{}, fmt.Errorf("%w: %d->%d", ErrNoBridge, srcChain, dstChain)
	}
	return best, nil
}

// size caps the configured notional at a fraction of the thinnest leg's
// liquidity so one trade never dominates a pool.
func (s *Selector) size(opp ranker.Opportunity) decimal.Decimal {
	amount := opp.Notional
	thinnest := decimal.Decimal{}
	for i, leg := range opp.Legs {
		if i == 0 || leg.Liquidity.LessThan(thinnest) {
			thinnest = leg.Liquidity
		}
	}
	if thinnest.Sign() > 0 {
		limit := thinnest.Mul(s.opts.MaxLiquidityFraction)
		if limit.LessThan(amount) {
			amount = limit
		}
	}
	return amount
}

func (s *Selector) gasPriceGwei(ctx context.Context, chainID int64) float64 {
	if s.gas == nil {
		return 0
	}
	wei, err := s.gas.GasPrice(ctx, chainID)
	if err != nil {
		// Best-effort factor: score without gas rather than fail routing.
		s.logger.Warn().Err(err).Int64("chain_id", chainID).Msg("gas price unavailable for scoring")
		return 0
	}
	return wei.Div(gweiPerWei).InexactFloat64()
}

// scarcity converts liquidity into a lower-is-better factor.
func scarcity(liquidity decimal.Decimal) float64 {
	one := decimal.NewFromInt(1)
	return one.Div(one.Add(liquidity.Abs())).InexactFloat64()
}

func supportsChain(bridge config.BridgeConfig, chainID int64) bool {
	for _, id := range bridge.ChainIDs {
		if id == chainID {
			return true
		}
	}
	return false
}
