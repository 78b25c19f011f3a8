package matcher

import (
	"context"

	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

// stablecoin summarises INR purchases of a stablecoin per day. There is no sell
// leg to match, so the sell-side fields stay zero.
func (p *pass) stablecoin(ctx context.Context, asset string, txs []types.Transaction) {
	pair := asset + string(types.QuoteINR)
	var buys []types.Transaction
	for _, tx := range txs {
		if tx.Side == types.SideBuy && tx.Symbol == pair {
			buys = append(buys, tx)
		}
	}
	if len(buys) == 0 {
		logger.Debug(ctx, "Stablecoin has no INR buys", "asset", asset, "transactions", len(txs))
		return
	}

	days, keys := byDay(buys)
	for _, k := range keys {
		l := sum(days[k])
		p.res.Summaries.Add(types.AssetSummary{
			DateKey:             k,
			Date:                types.DisplayDate(k),
			Asset:               asset,
			InrPrice:            l.avg(),
			UsdtPrice:           decimal.Zero,
			CoinSoldQty:         l.qty,
			UsdtPurchaseCost:    decimal.Zero,
			UsdtQuantity:        l.qty,
			UsdtPurchaseCostInr: l.cost,
			TDS:                 l.tds,
		})
	}
}
