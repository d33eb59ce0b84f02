// Package profit holds the pure profitability model. Slippage is always
// applied against the trader: the buy-side price inflates and the sell-side
// price deflates. Nothing in this package performs I/O.
package profit

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Pair computes slippage- and fee-adjusted profit for buying at priceLow and
// selling at priceHigh:
//
//	adjustedLow  = priceLow  * (1 + slipLow)
//	adjustedHigh = priceHigh * (1 - slipHigh)
//	profit       = adjustedHigh - adjustedLow - fee - gas
//
// The second return value is false when either adjusted price is
// non-positive; such a combination must be excluded entirely.
func Pair(priceLow, priceHigh, slipLow, slipHigh, fee, gas decimal.Decimal) (decimal.Decimal, bool) {
	adjustedLow := priceLow.Mul(one.Add(slipLow))
	adjustedHigh := priceHigh.Mul(one.Sub(slipHigh))
	if adjustedLow.Sign() <= 0 || adjustedHigh.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return adjustedHigh.Sub(adjustedLow).Sub(fee).Sub(gas), true
}

// Leg is one step of a multi-hop path: its exchange rate (output units per
// input unit) and the slippage assumption for that leg.
type Leg struct {
	Rate     decimal.Decimal
	Slippage decimal.Decimal
}

// Path computes the per-unit profit of a multi-hop cycle. Each leg's output
// feeds the next leg's input, so per-leg net multipliers compound rather than
// add; fixed costs are subtracted once at the end.
func Path(legs []Leg, fee, gas decimal.Decimal) (decimal.Decimal, bool) {
	if len(legs) == 0 {
		return decimal.Decimal{}, false
	}
	multiplier := one
	for _, leg := range legs {
		net := leg.Rate.Mul(one.Sub(leg.Slippage))
		if net.Sign() <= 0 {
			return decimal.Decimal{}, false
		}
		multiplier = multiplier.Mul(net)
	}
	return multiplier.Sub(one).Sub(fee).Sub(gas), true
}
