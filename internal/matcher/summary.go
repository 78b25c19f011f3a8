package matcher

import (
	"context"
	"sort"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

// leg sums one side of an asset's trades.
type leg struct {
	cost decimal.Decimal
	qty  decimal.Decimal
	tds  decimal.Decimal
	n    int
}

func sum(txs []types.Transaction) leg {
	var l leg
	for _, tx := range txs {
		l.cost = l.cost.Add(tx.Cost())
		l.qty = l.qty.Add(tx.Quantity)
		l.tds = l.tds.Add(tx.TDS)
		l.n++
	}
	return l
}

// avg is the volume-weighted price, 0 for an empty leg.
func (l leg) avg() decimal.Decimal {
	if l.qty.IsZero() {
		return decimal.Zero
	}
	return l.cost.Div(l.qty)
}

// costRatio is avgBuy/avgSell, exactly 0 when the sell average is 0.
func costRatio(avgBuy, avgSell decimal.Decimal) decimal.Decimal {
	if avgSell.IsZero() {
		return decimal.Zero
	}
	return avgBuy.Div(avgSell)
}

// summarize fills the derived fields shared by every strategy.
func summarize(dateKey, asset string, avgBuy, avgSell, qty, tds decimal.Decimal) types.AssetSummary {
	return types.AssetSummary{
		DateKey:             dateKey,
		Date:                types.DisplayDate(dateKey),
		Asset:               asset,
		InrPrice:            avgBuy,
		UsdtPrice:           avgSell,
		CoinSoldQty:         qty,
		UsdtPurchaseCost:    costRatio(avgBuy, avgSell),
		UsdtQuantity:        avgSell.Mul(qty),
		UsdtPurchaseCostInr: avgBuy.Mul(qty),
		TDS:                 tds,
	}
}

// skip logs unmatched activity and records it when skip tracking is on.
func (p *pass) skip(ctx context.Context, asset, dateKey, reason string, buys, sells leg) {
	logger.Skip(ctx, asset, dateKey, reason,
		"strategy", p.strategy.String(),
		"buy_qty", buys.qty.String(),
		"sell_qty", sells.qty.String(),
	)
	if !p.opts.TrackSkipped {
		return
	}
	p.res.Skipped.Add(types.AssetSummary{
		DateKey:      dateKey,
		Date:         types.DisplayDate(dateKey),
		Asset:        asset,
		InrPrice:     buys.avg(),
		UsdtPrice:    sells.avg(),
		TDS:          sells.tds,
		BuyQuantity:  buys.qty,
		SellQuantity: sells.qty,
		Reason:       reason,
	})
}

// skipBuysOnly records an asset that was bought but never sold, keyed by the
// day of its first buy.
func (p *pass) skipBuysOnly(ctx context.Context, asset string, buys []types.Transaction) {
	first := buys[0]
	for _, b := range buys[1:] {
		if b.Timestamp.Before(first.Timestamp) {
			first = b
		}
	}
	p.skip(ctx, asset, first.DayKey(), "no sells for asset", sum(buys), leg{})
}

// timed splits off the transactions without a usable timestamp.
func timed(ctx context.Context, asset string, txs []types.Transaction) []types.Transaction {
	out := make([]types.Transaction, 0, len(txs))
	dropped := 0
	for _, tx := range txs {
		if !tx.HasTime() {
			dropped++
			continue
		}
		out = append(out, tx)
	}
	if dropped > 0 {
		logger.Warn(ctx, "Transactions without a parsable date excluded", "asset", asset, "count", dropped)
	}
	return out
}

// inrBuysUsdtSells selects the two legs every matching strategy works on.
func inrBuysUsdtSells(txs []types.Transaction) (buys, sells []types.Transaction) {
	return assets.Filter(txs, types.QuoteINR, types.SideBuy), assets.Filter(txs, types.QuoteUSDT, types.SideSell)
}

// byDay groups transactions by day key and returns the sorted keys.
func byDay(txs []types.Transaction) (map[string][]types.Transaction, []string) {
	days := map[string][]types.Transaction{}
	for _, tx := range txs {
		k := tx.DayKey()
		days[k] = append(days[k], tx)
	}
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return days, keys
}
