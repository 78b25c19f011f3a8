package matcher

import (
	"context"

	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

// chronological is fifo restricted to lots bought at or before each sell. It
// emits one summary row per individual match.
func (p *pass) chronological(ctx context.Context, asset string, txs []types.Transaction) error {
	buys, sells, err := p.loadLots(ctx, asset, txs)
	if err != nil {
		return err
	}
	if len(sells) == 0 {
		if len(buys) > 0 {
			p.skipBuysOnly(ctx, asset, buys)
		}
		return p.collectOpenLots(ctx, asset)
	}

	for _, sell := range sells {
		eligible, err := p.lots.Eligible(ctx, asset, sell.Timestamp)
		if err != nil {
			return err
		}

		need := sell.Quantity
		for _, lot := range eligible {
			if !need.IsPositive() {
				break
			}
			m, err := p.consume(ctx, asset, lot, sell, need)
			if err != nil {
				return err
			}
			need = need.Sub(m.MatchedQuantity)

			out := summarize(sell.DayKey(), asset, m.CostBasis, m.SellPrice, m.MatchedQuantity, m.TDS)
			out.Matches = []types.SellMatch{m}
			p.res.Summaries.Add(out)
		}

		if need.IsPositive() {
			logger.Warn(ctx, "No eligible lots bought before sell",
				"asset", asset,
				"row", sell.Row,
				"sell_time", sell.Timestamp,
				"eligible_lots", len(eligible),
				"unmatched", need.String(),
			)
			if p.opts.TrackSkipped {
				var tds decimal.Decimal
				if sell.Quantity.IsPositive() {
					tds = sell.TDS.Mul(need).Div(sell.Quantity)
				}
				p.skip(ctx, asset, sell.DayKey(), "no lots purchased before sell",
					leg{}, leg{cost: sell.UnitPrice().Mul(need), qty: need, tds: tds, n: 1})
			}
		}
	}
	return p.collectOpenLots(ctx, asset)
}
