package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TokenPair identifies a base/quote token pair, e.g. WETH/USDC.
type TokenPair struct {
	Base  string
	Quote string
}

// ParsePair parses "BASE/QUOTE" notation.
func ParsePair(s string) (TokenPair, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TokenPair{}, fmt.Errorf("invalid token pair %q", s)
	}
	return TokenPair{Base: parts[0], Quote: parts[1]}, nil
}

// String renders the pair in BASE/QUOTE notation.
func (p TokenPair) String() string {
	return p.Base + "/" + p.Quote
}

// Quote is one immutable per-venue price observation. Quotes are produced
// fresh each poll cycle; the snapshot's cycle stamp is the staleness boundary.
type Quote struct {
	Venue     string
	ChainID   int64
	Pair      TokenPair
	Price     decimal.Decimal
	Liquidity decimal.Decimal
	Timestamp time.Time
}

// Outage records a venue that failed to answer within the fetch budget, so
// downstream consumers can distinguish "no answer" from "bad price".
type Outage struct {
	Venue string
	Pair  TokenPair
	Err   string
}

// Snapshot is the cycle-scoped quote set handed to the ranker. All quotes in
// one snapshot belong to the same poll cycle.
type Snapshot struct {
	Cycle       time.Time
	BlockNumber uint64
	Quotes      map[string][]Quote
	Outages     []Outage
}

// PairQuotes returns the quotes observed for a pair this cycle.
func (s Snapshot) PairQuotes(pair TokenPair) []Quote {
	return s.Quotes[pair.String()]
}

// Empty reports whether no venue produced a quote this cycle.
func (s Snapshot) Empty() bool {
	for _, quotes := range s.Quotes {
		if len(quotes) > 0 {
			return false
		}
	}
	return true
}
