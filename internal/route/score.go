package route

import "arb-engine/internal/config"

// Candidate carries the factor values of one scoring decision. Unused
// factors stay zero. All factors are "lower is better".
type Candidate struct {
	Name      string
	GasPrice  float64
	Fee       float64
	Liquidity float64
	Latency   float64
	Extras    float64
}

// Score folds a candidate's factors through a named weight table. The same
// function scores swap venues and bridges; only the weight table differs.
func Score(c Candidate, w config.WeightTable) float64 {
	return c.GasPrice*w.GasPrice +
		c.Fee*w.Fee +
		c.Liquidity*w.Liquidity +
		c.Latency*w.Latency +
		c.Extras*w.Extras
}
