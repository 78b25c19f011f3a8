package matcher

import (
	"context"

	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

// aggregate matches one global average buy price against one global average
// sell price. It ignores dates entirely and is only meant for sanity totals.
func (p *pass) aggregate(ctx context.Context, asset string, txs []types.Transaction) error {
	buys, sells := inrBuysUsdtSells(txs)
	if len(buys) == 0 || len(sells) == 0 {
		if len(buys) > 0 || len(sells) > 0 {
			reason := "no sells for asset"
			if len(buys) == 0 {
				reason = "no buys for asset"
			}
			p.skip(ctx, asset, types.AggregateDateKey, reason, sum(buys), sum(sells))
		}
		return nil
	}

	b, s := sum(buys), sum(sells)
	avgBuy, avgSell := b.avg(), s.avg()
	matched := decimal.Min(b.qty, s.qty)

	out := summarize(types.AggregateDateKey, asset, avgBuy, avgSell, matched, s.tds)
	// Derived units are (avgBuy × matched) / ratio, guarded the same way.
	if ratio := out.UsdtPurchaseCost; ratio.IsZero() {
		out.UsdtQuantity = decimal.Zero
	} else {
		out.UsdtQuantity = avgBuy.Mul(matched).Div(ratio)
	}
	p.res.Summaries.Add(out)
	return nil
}
