package ranker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb-engine/internal/market"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var wethUSDC = market.TokenPair{Base: "WETH", Quote: "USDC"}

func snapshotOf(quotes ...market.Quote) market.Snapshot {
	snap := market.Snapshot{
		Cycle:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Quotes: make(map[string][]market.Quote),
	}
	for _, q := range quotes {
		key := q.Pair.String()
		snap.Quotes[key] = append(snap.Quotes[key], q)
	}
	return snap
}

func quote(venue string, chainID int64, pair market.TokenPair, price, liquidity string) market.Quote {
	return market.Quote{
		Venue:     venue,
		ChainID:   chainID,
		Pair:      pair,
		Price:     dec(price),
		Liquidity: dec(liquidity),
	}
}

func defaultOpts() Options {
	return Options{
		Slippage:           dec("0.01"),
		Fee:                dec("0.1"),
		GasCost:            dec("0.5"),
		LiquidityThreshold: dec("100"),
		Notional:           dec("1000"),
	}
}

func TestRankSelectsProfitableSpread(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "100", "5000"),
		quote("sushiswap", 1, wethUSDC, "105", "5000"),
	)

	opp, err := r.Rank(snap)
	require.NoError(t, err)
	assert.Equal(t, KindVenuePair, opp.Kind)
	assert.Equal(t, "uniswap_v2", opp.SourceVenue())
	assert.Equal(t, "sushiswap", opp.DestVenue())
	// adjustedLow 101, adjustedHigh 103.95, minus fee 0.1 and gas 0.5.
	assert.True(t, opp.ExpectedProfit.Equal(dec("2.35")), "got %s", opp.ExpectedProfit)
}

func TestRankThinSpreadYieldsNothing(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "100", "5000"),
		quote("sushiswap", 1, wethUSDC, "100.05", "5000"),
	)

	_, err := r.Rank(snap)
	assert.ErrorIs(t, err, ErrNoOpportunity)
}

func TestRankNeverReturnsNonPositiveProfit(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "100", "5000"),
		quote("sushiswap", 1, wethUSDC, "100", "5000"),
		quote("oneinch", 1, wethUSDC, "99.99", "5000"),
	)

	_, err := r.Rank(snap)
	assert.ErrorIs(t, err, ErrNoOpportunity)
}

func TestRankLiquidityFilterExcludesPair(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	// Huge spread but the cheap venue is below the liquidity threshold.
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "100", "50"),
		quote("sushiswap", 1, wethUSDC, "150", "5000"),
	)

	_, err := r.Rank(snap)
	assert.ErrorIs(t, err, ErrNoOpportunity)
}

func TestRankDirectionNotFixed(t *testing.T) {
	// Same venues, inverted prices: the source/dest roles must flip.
	r := New(defaultOpts(), zerolog.Nop())
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "105", "5000"),
		quote("sushiswap", 1, wethUSDC, "100", "5000"),
	)

	opp, err := r.Rank(snap)
	require.NoError(t, err)
	assert.Equal(t, "sushiswap", opp.SourceVenue())
	assert.Equal(t, "uniswap_v2", opp.DestVenue())
}

func TestRankDeterministic(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "100", "5000"),
		quote("sushiswap", 1, wethUSDC, "105", "5000"),
		quote("oneinch", 1, wethUSDC, "103", "5000"),
		quote("pancakeswap", 56, market.TokenPair{Base: "WBNB", Quote: "USDC"}, "300", "9000"),
		quote("cowswap", 1, market.TokenPair{Base: "WBNB", Quote: "USDC"}, "309", "9000"),
	)

	first, err := r.Rank(snap)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Rank(snap)
		require.NoError(t, err)
		assert.Equal(t, first.VenuePath(), again.VenuePath())
		assert.True(t, first.ExpectedProfit.Equal(again.ExpectedProfit))
	}
}

func TestRankTieKeepsFirstFound(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	// Two identical spreads on different venue pairs; sorted venue order
	// makes oneinch->sushiswap the first-found winner.
	snap := snapshotOf(
		quote("oneinch", 1, wethUSDC, "100", "5000"),
		quote("sushiswap", 1, wethUSDC, "105", "5000"),
		quote("uniswap_v2", 1, wethUSDC, "100", "5000"),
	)

	opp, err := r.Rank(snap)
	require.NoError(t, err)
	assert.Equal(t, "oneinch", opp.SourceVenue())
}

func TestRankPicksGlobalBestAcrossPairs(t *testing.T) {
	r := New(defaultOpts(), zerolog.Nop())
	wbtc := market.TokenPair{Base: "WBTC", Quote: "USDC"}
	snap := snapshotOf(
		quote("uniswap_v2", 1, wethUSDC, "100", "5000"),
		quote("sushiswap", 1, wethUSDC, "105", "5000"),
		quote("uniswap_v3", 1, wbtc, "1000", "8000"),
		quote("oneinch", 1, wbtc, "1100", "8000"),
	)

	opp, err := r.Rank(snap)
	require.NoError(t, err)
	assert.Equal(t, wbtc, opp.Pair)
	assert.Equal(t, "uniswap_v3", opp.SourceVenue())
}

func TestRankStaleQuoteExcluded(t *testing.T) {
	opts := defaultOpts()
	opts.MaxQuoteAge = time.Minute
	r := New(opts, zerolog.Nop())

	cycle := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fresh := quote("sushiswap", 1, wethUSDC, "105", "5000")
	fresh.Timestamp = cycle.Add(-10 * time.Second)
	stale := quote("uniswap_v2", 1, wethUSDC, "100", "5000")
	stale.Timestamp = cycle.Add(-5 * time.Minute)

	snap := snapshotOf(fresh, stale)
	snap.Cycle = cycle

	_, err := r.Rank(snap)
	assert.ErrorIs(t, err, ErrNoOpportunity)
}

func TestRankTriangularCycle(t *testing.T) {
	opts := defaultOpts()
	opts.Triangular = true
	opts.Slippage = decimal.Zero
	opts.Fee = decimal.Zero
	opts.GasCost = decimal.Zero
	r := New(opts, zerolog.Nop())

	// A->B at 2, B->C at 3, C->A at 0.2: product 1.2, 20% per unit.
	snap := snapshotOf(
		quote("uniswap_v2", 1, market.TokenPair{Base: "AAA", Quote: "BBB"}, "2", "5000"),
		quote("sushiswap", 1, market.TokenPair{Base: "BBB", Quote: "CCC"}, "3", "5000"),
		quote("oneinch", 1, market.TokenPair{Base: "CCC", Quote: "AAA"}, "0.2", "5000"),
	)

	opp, err := r.Rank(snap)
	require.NoError(t, err)
	assert.Equal(t, KindTriangular, opp.Kind)
	require.Len(t, opp.Legs, 3)
	// 0.2 per unit on the configured notional of 1000.
	assert.True(t, opp.ExpectedProfit.Equal(dec("200")), "got %s", opp.ExpectedProfit)
}

func TestRankTriangularLosingCycleIgnored(t *testing.T) {
	opts := defaultOpts()
	opts.Triangular = true
	r := New(opts, zerolog.Nop())

	// Consistent prices: the cycle multiplies to 1 and slippage makes it
	// strictly losing.
	snap := snapshotOf(
		quote("uniswap_v2", 1, market.TokenPair{Base: "AAA", Quote: "BBB"}, "2", "5000"),
		quote("sushiswap", 1, market.TokenPair{Base: "BBB", Quote: "CCC"}, "3", "5000"),
		quote("oneinch", 1, market.TokenPair{Base: "CCC", Quote: "AAA"}, "0.166666666666", "5000"),
	)

	_, err := r.Rank(snap)
	assert.ErrorIs(t, err, ErrNoOpportunity)
}
