package ranker

import (
	"sort"

	"github.com/shopspring/decimal"

	"arb-engine/internal/market"
	"arb-engine/internal/profit"
)

// edge is one directed token conversion offered by a venue this cycle.
// Selling the pair's base applies slippage to the received price; buying it
// pays the slippage-inflated price, folded into the effective rate.
type edge struct {
	from  string
	to    string
	quote market.Quote
	side  Side
	rate  decimal.Decimal
}

// rankTriangles evaluates three-leg cycles over tokens connected by this
// cycle's quotes, one venue per leg. Cycles shorter than three distinct
// tokens are already covered by the venue-pair pass.
func (r *Ranker) rankTriangles(snap market.Snapshot, pairKeys []string, consider func(Opportunity)) {
	edges := r.buildEdges(snap, pairKeys)

	tokens := make([]string, 0, len(edges))
	for token := range edges {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	for _, a := range tokens {
		for _, eAB := range edges[a] {
			b := eAB.to
			if b <= a {
				continue
			}
			for _, eBC := range edges[b] {
				c := eBC.to
				if c == a || c <= a {
					continue
				}
				for _, eCA := range edges[c] {
					if eCA.to != a {
						continue
					}
					r.considerTriangle(snap, eAB, eBC, eCA, consider)
				}
			}
		}
	}
}

// buildEdges indexes the snapshot's usable quotes as a directed conversion
// graph, deterministically ordered.
func (r *Ranker) buildEdges(snap market.Snapshot, pairKeys []string) map[string][]edge {
	one := decimal.NewFromInt(1)
	edges := make(map[string][]edge)

	for _, key := range pairKeys {
		for _, q := range r.usable(snap, snap.Quotes[key]) {
			// Sell base: receive price units of quote, slippage deflates.
			sellRate := q.Price.Mul(one.Sub(r.opts.Slippage))
			if sellRate.Sign() > 0 {
				edges[q.Pair.Base] = append(edges[q.Pair.Base], edge{
					from: q.Pair.Base, to: q.Pair.Quote, quote: q, side: SideSell, rate: sellRate,
				})
			}
			// Buy base: pay the slippage-inflated price per unit.
			buyCost := q.Price.Mul(one.Add(r.opts.Slippage))
			if buyCost.Sign() > 0 {
				edges[q.Pair.Quote] = append(edges[q.Pair.Quote], edge{
					from: q.Pair.Quote, to: q.Pair.Base, quote: q, side: SideBuy, rate: one.Div(buyCost),
				})
			}
		}
	}

	for token := range edges {
		list := edges[token]
		sort.Slice(list, func(i, j int) bool {
			if list[i].to != list[j].to {
				return list[i].to < list[j].to
			}
			return list[i].quote.Venue < list[j].quote.Venue
		})
		edges[token] = list
	}
	return edges
}

func (r *Ranker) considerTriangle(snap market.Snapshot, eAB, eBC, eCA edge, consider func(Opportunity)) {
	// Slippage is already folded into each edge rate, adversely.
	net, viable := profit.Path([]profit.Leg{
		{Rate: eAB.rate},
		{Rate: eBC.rate},
		{Rate: eCA.rate},
	}, r.opts.Fee, r.opts.GasCost)
	if !viable {
		return
	}

	// Path profit is a per-unit fraction of the starting token; scale by
	// the notional to express it in token units.
	scaled := net.Mul(r.opts.Notional)

	consider(Opportunity{
		Kind: KindTriangular,
		Pair: eAB.quote.Pair,
		Legs: []Leg{
			legFromEdge(eAB),
			legFromEdge(eBC),
			legFromEdge(eCA),
		},
		Notional:       r.opts.Notional,
		ExpectedProfit: scaled,
		Slippage:       r.opts.Slippage,
		Fee:            r.opts.Fee,
		GasCost:        r.opts.GasCost,
		Cycle:          snap.Cycle,
		BlockNumber:    snap.BlockNumber,
	})
}

func legFromEdge(e edge) Leg {
	return Leg{
		Venue:     e.quote.Venue,
		ChainID:   e.quote.ChainID,
		Pair:      e.quote.Pair,
		Side:      e.side,
		Price:     e.quote.Price,
		Liquidity: e.quote.Liquidity,
	}
}
