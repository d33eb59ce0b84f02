package profit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPairBaseline(t *testing.T) {
	// Zero slippage, zero fees: profit is the raw spread.
	got, ok := Pair(dec("100"), dec("105"), decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	require.True(t, ok)
	assert.True(t, got.Equal(dec("5")), "got %s", got)
}

func TestPairAdjustedScenario(t *testing.T) {
	// 100 vs 105, 1% slippage both legs, fee 0.1, gas 0.5:
	// adjustedLow = 101, adjustedHigh = 103.95, profit = 2.35.
	got, ok := Pair(dec("100"), dec("105"), dec("0.01"), dec("0.01"), dec("0.1"), dec("0.5"))
	require.True(t, ok)
	assert.True(t, got.Equal(dec("2.35")), "got %s", got)
}

func TestPairThinSpreadNotProfitable(t *testing.T) {
	// 100 vs 100.05 with 1% slippage: the adjusted spread is negative.
	got, ok := Pair(dec("100"), dec("100.05"), dec("0.01"), dec("0.01"), dec("0.1"), dec("0.5"))
	require.True(t, ok)
	assert.True(t, got.Sign() < 0, "expected negative profit, got %s", got)
}

func TestPairSlippageAlwaysPenalizes(t *testing.T) {
	base, ok := Pair(dec("100"), dec("105"), decimal.Zero, decimal.Zero, dec("0.1"), dec("0.5"))
	require.True(t, ok)

	for _, slip := range []string{"0.001", "0.01", "0.05", "0.2"} {
		slipped, ok := Pair(dec("100"), dec("105"), dec(slip), dec(slip), dec("0.1"), dec("0.5"))
		require.True(t, ok)
		assert.True(t, slipped.LessThan(base), "slippage %s should reduce profit: %s >= %s", slip, slipped, base)
	}
}

func TestPairRejectsNonPositiveAdjustedPrice(t *testing.T) {
	_, ok := Pair(dec("0"), dec("105"), dec("0.01"), dec("0.01"), decimal.Zero, decimal.Zero)
	assert.False(t, ok)

	// Full sell-side slippage drives the adjusted high price to zero.
	_, ok = Pair(dec("100"), dec("105"), decimal.Zero, dec("1"), decimal.Zero, decimal.Zero)
	assert.False(t, ok)

	_, ok = Pair(dec("-1"), dec("105"), decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	assert.False(t, ok)
}

func TestPathCompounds(t *testing.T) {
	// 1.1 * 1.1 = 1.21: compounding, not 1.2.
	legs := []Leg{
		{Rate: dec("1.1")},
		{Rate: dec("1.1")},
	}
	got, ok := Path(legs, decimal.Zero, decimal.Zero)
	require.True(t, ok)
	assert.True(t, got.Equal(dec("0.21")), "got %s", got)
}

func TestPathSlippagePerLeg(t *testing.T) {
	legs := []Leg{
		{Rate: dec("2"), Slippage: dec("0.5")},
		{Rate: dec("1"), Slippage: dec("0.5")},
	}
	// (2*0.5) * (1*0.5) = 0.5, per-unit profit -0.5 before costs.
	got, ok := Path(legs, decimal.Zero, decimal.Zero)
	require.True(t, ok)
	assert.True(t, got.Equal(dec("-0.5")), "got %s", got)
}

func TestPathRejectsDegenerateLegs(t *testing.T) {
	_, ok := Path(nil, decimal.Zero, decimal.Zero)
	assert.False(t, ok)

	_, ok = Path([]Leg{{Rate: decimal.Zero}}, decimal.Zero, decimal.Zero)
	assert.False(t, ok)

	_, ok = Path([]Leg{{Rate: dec("1"), Slippage: dec("1")}}, decimal.Zero, decimal.Zero)
	assert.False(t, ok)
}

func TestPathFixedCostsSubtractedOnce(t *testing.T) {
	legs := []Leg{{Rate: dec("1.05")}, {Rate: dec("1.05")}, {Rate: dec("1.05")}}
	withCosts, ok := Path(legs, dec("0.01"), dec("0.02"))
	require.True(t, ok)
	noCosts, ok := Path(legs, decimal.Zero, decimal.Zero)
	require.True(t, ok)
	assert.True(t, noCosts.Sub(withCosts).Equal(dec("0.03")))
}
