package ranker

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"arb-engine/internal/market"
)

// Kind classifies how an opportunity was constructed.
type Kind string

const (
	KindVenuePair  Kind = "venue_pair"
	KindTriangular Kind = "triangular"
)

// Side is the trader's role on one leg.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Leg is one venue's buy or sell step of the planned trade.
type Leg struct {
	Venue     string
	ChainID   int64
	Pair      market.TokenPair
	Side      Side
	Price     decimal.Decimal
	Liquidity decimal.Decimal
}

// Opportunity is a candidate arbitrage derived from one cycle's snapshot.
// It is never persisted beyond the decision cycle that produced it.
type Opportunity struct {
	Kind           Kind
	Pair           market.TokenPair
	Legs           []Leg
	Notional       decimal.Decimal
	ExpectedProfit decimal.Decimal
	Slippage       decimal.Decimal
	Fee            decimal.Decimal
	GasCost        decimal.Decimal
	Cycle          time.Time
	BlockNumber    uint64
}

// SourceVenue is the venue of the first leg.
func (o Opportunity) SourceVenue() string {
	if len(o.Legs) == 0 {
		return ""
	}
	return o.Legs[0].Venue
}

// DestVenue is the venue of the last leg.
func (o Opportunity) DestVenue() string {
	if len(o.Legs) == 0 {
		return ""
	}
	return o.Legs[len(o.Legs)-1].Venue
}

// VenuePath renders the ordered venue path, e.g. "uniswap_v2>sushiswap".
func (o Opportunity) VenuePath() string {
	names := make([]string, len(o.Legs))
	for i, leg := range o.Legs {
		names[i] = leg.Venue
	}
	return strings.Join(names, ">")
}

// CrossChain reports whether the legs span more than one chain.
func (o Opportunity) CrossChain() bool {
	for _, leg := range o.Legs[1:] {
		if leg.ChainID != o.Legs[0].ChainID {
			return true
		}
	}
	return false
}
