package route

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb-engine/internal/config"
	"arb-engine/internal/market"
	"arb-engine/internal/ranker"
)

type stubGas struct {
	prices map[int64]decimal.Decimal
}

func (g stubGas) GasPrice(_ context.Context, chainID int64) (decimal.Decimal, error) {
	return g.prices[chainID], nil
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func testOpportunity(srcChain, dstChain int64) ranker.Opportunity {
	pair := market.TokenPair{Base: "WETH", Quote: "USDC"}
	return ranker.Opportunity{
		Kind: ranker.KindVenuePair,
		Pair: pair,
		Legs: []ranker.Leg{
			{Venue: "uniswap_v2", ChainID: srcChain, Pair: pair, Side: ranker.SideBuy, Price: dec("2000"), Liquidity: dec("5000")},
			{Venue: "sushiswap", ChainID: dstChain, Pair: pair, Side: ranker.SideSell, Price: dec("2010"), Liquidity: dec("8000")},
		},
		Notional:       dec("1000"),
		ExpectedProfit: dec("5"),
	}
}

func defaultWeights() config.WeightsConfig {
	return config.WeightsConfig{
		Swap:   config.WeightTable{GasPrice: 0.5, Liquidity: 0.3, Extras: 0.2},
		Bridge: config.WeightTable{GasPrice: 0.3, Fee: 0.4, Latency: 0.2, Extras: 0.1},
	}
}

func TestSelectSameChainHasNoBridge(t *testing.T) {
	sel := New(Options{
		Weights:              defaultWeights(),
		Recipient:            "0xabc",
		MaxLiquidityFraction: dec("0.1"),
	}, stubGas{}, zerolog.Nop())

	decision, err := sel.Select(context.Background(), testOpportunity(1, 1))
	require.NoError(t, err)

	assert.Nil(t, decision.Bridge)
	assert.Equal(t, "0xabc", decision.Recipient)
	assert.NotEmpty(t, decision.SwapVenue)
}

func TestSelectCrossChainPicksCheapestBridge(t *testing.T) {
	bridges := []config.BridgeConfig{
		{Name: "wormhole", ChainIDs: []int64{1, 137}, FeeUSD: 4, LatencySec: 300, Available: true},
		{Name: "stargate", ChainIDs: []int64{1, 137}, FeeUSD: 1, LatencySec: 60, Available: true},
		{Name: "debridge", ChainIDs: []int64{1, 42161}, FeeUSD: 0.5, LatencySec: 30, Available: true},
	}
	sel := New(Options{
		Bridges:              bridges,
		Weights:              defaultWeights(),
		MaxLiquidityFraction: dec("0.1"),
	}, stubGas{}, zerolog.Nop())

	decision, err := sel.Select(context.Background(), testOpportunity(1, 137))
	require.NoError(t, err)

	require.NotNil(t, decision.Bridge)
	// debridge does not support chain 137; stargate beats wormhole on fee
	// and latency under the bridge weight table.
	assert.Equal(t, "stargate", decision.Bridge.Name)
}

func TestSelectExcludesUnavailableBridges(t *testing.T) {
	bridges := []config.BridgeConfig{
		{Name: "stargate", ChainIDs: []int64{1, 137}, FeeUSD: 1, LatencySec: 60, Available: false},
		{Name: "wormhole", ChainIDs: []int64{1, 137}, FeeUSD: 4, LatencySec: 300, Available: true},
	}
	sel := New(Options{
		Bridges:              bridges,
		Weights:              defaultWeights(),
		MaxLiquidityFraction: dec("0.1"),
	}, stubGas{}, zerolog.Nop())

	decision, err := sel.Select(context.Background(), testOpportunity(1, 137))
	require.NoError(t, err)

	require.NotNil(t, decision.Bridge)
	assert.Equal(t, "wormhole", decision.Bridge.Name)
}

func TestSelectNoBridgeForChainPair(t *testing.T) {
	bridges := []config.BridgeConfig{
		{Name: "debridge", ChainIDs: []int64{1, 42161}, FeeUSD: 0.5, LatencySec: 30, Available: true},
	}
	sel := New(Options{
		Bridges:              bridges,
		Weights:              defaultWeights(),
		MaxLiquidityFraction: dec("0.1"),
	}, stubGas{}, zerolog.Nop())

	_, err := sel.Select(context.Background(), testOpportunity(1, 137))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBridge)
}

func TestSelectSizingCappedByThinnestLeg(t *testing.T) {
	sel := New(Options{
		Weights:              defaultWeights(),
		MaxLiquidityFraction: dec("0.1"),
	}, stubGas{}, zerolog.Nop())

	opp := testOpportunity(1, 1)
	// Thinnest leg has 5000 liquidity; 10% cap is 500, below the 1000 notional.
	decision, err := sel.Select(context.Background(), opp)
	require.NoError(t, err)
	assert.True(t, decision.AmountIn.Equal(dec("500")), "got %s", decision.AmountIn)
}

func TestSelectSizingUsesNotionalWhenLiquidityIsDeep(t *testing.T) {
	sel := New(Options{
		Weights:              defaultWeights(),
		MaxLiquidityFraction: dec("0.5"),
	}, stubGas{}, zerolog.Nop())

	opp := testOpportunity(1, 1)
	opp.Legs[0].Liquidity = dec("100000")
	opp.Legs[1].Liquidity = dec("100000")

	decision, err := sel.Select(context.Background(), opp)
	require.NoError(t, err)
	assert.True(t, decision.AmountIn.Equal(dec("1000")), "got %s", decision.AmountIn)
}

func TestSwapVenueSelectionFavoursDeeperLiquidity(t *testing.T) {
	sel := New(Options{
		Venues: []config.VenueConfig{
			{Name: "uniswap_v2", ChainID: 1, TakerFeeBps: 30},
			{Name: "sushiswap", ChainID: 1, TakerFeeBps: 30},
		},
		Weights:              defaultWeights(),
		MaxLiquidityFraction: dec("0.1"),
	}, stubGas{}, zerolog.Nop())

	// Identical venue fees and gas; the deeper book (sushiswap, 8000)
	// scores lower on the scarcity factor and wins.
	decision, err := sel.Select(context.Background(), testOpportunity(1, 1))
	require.NoError(t, err)
	assert.Equal(t, "sushiswap", decision.SwapVenue)
}

func TestScoreIsLinearInWeights(t *testing.T) {
	c := Candidate{GasPrice: 10, Fee: 2, Liquidity: 0.5, Latency: 60, Extras: 30}
	w := config.WeightTable{GasPrice: 0.3, Fee: 0.4, Latency: 0.2, Extras: 0.1}

	assert.InDelta(t, 10*0.3+2*0.4+60*0.2+30*0.1, Score(c, w), 1e-9)

	// Zero weights ignore every factor.
	assert.Zero(t, Score(c, config.WeightTable{}))
}
