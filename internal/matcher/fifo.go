package matcher

import (
	"context"
	"fmt"
	"sort"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

// fifo consumes the oldest buy lot first for every sell, regardless of when
// the lot was bought, and aggregates the matches per sell day.
func (p *pass) fifo(ctx context.Context, asset string, txs []types.Transaction) error {
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

	var matches []types.SellMatch
	unmatched := map[string][]types.Transaction{}
	for _, sell := range sells {
		need := sell.Quantity
		for need.IsPositive() {
			head, ok, err := p.lots.Head(ctx, asset)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			m, err := p.consume(ctx, asset, head, sell, need)
			if err != nil {
				return err
			}
			matches = append(matches, m)
			need = need.Sub(m.MatchedQuantity)
		}
		if need.IsPositive() {
			logger.Warn(ctx, "Sell exceeds buy inventory",
				"asset", asset, "row", sell.Row, "sell_qty", sell.Quantity.String(), "unmatched", need.String())
			rest := sell
			rest.Price = sell.UnitPrice()
			rest.Quantity = need
			rest.TotalCost = decimal.Zero
			if sell.Quantity.IsPositive() {
				rest.TDS = sell.TDS.Mul(need).Div(sell.Quantity)
			}
			unmatched[sell.DayKey()] = append(unmatched[sell.DayKey()], rest)
		}
	}

	p.addDailyFIFO(asset, matches)
	p.skipUnmatchedSells(ctx, asset, unmatched)
	return p.collectOpenLots(ctx, asset)
}

// loadLots adds every INR buy of the asset to the inventory, oldest first, and
// returns the timed buys and the time-ordered USDT sells.
func (p *pass) loadLots(ctx context.Context, asset string, txs []types.Transaction) (buys, sells []types.Transaction, err error) {
	buys, sells = inrBuysUsdtSells(timed(ctx, asset, txs))
	assets.SortByTime(buys)
	assets.SortByTime(sells)

	for _, b := range buys {
		qty := b.Quantity
		_, err := p.lots.AddLot(ctx, types.FIFOLot{
			Asset:             asset,
			Symbol:            b.Symbol,
			CostPrice:         b.UnitPrice(),
			OriginalQuantity:  qty,
			RemainingQuantity: qty,
			PurchaseTime:      b.Timestamp,
			TDS:               b.TDS,
			TotalCost:         b.TotalCost,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("add lot: %w", err)
		}
	}
	return buys, sells, nil
}

// consume takes up to need from lot for sell and returns the match.
func (p *pass) consume(ctx context.Context, asset string, lot types.FIFOLot, sell types.Transaction, need decimal.Decimal) (types.SellMatch, error) {
	_, taken, err := p.lots.Consume(ctx, asset, lot.ID, need)
	if err != nil {
		return types.SellMatch{}, err
	}

	sellPrice := sell.UnitPrice()
	tds := decimal.Zero
	if sell.Quantity.IsPositive() {
		tds = sell.TDS.Mul(taken).Div(sell.Quantity)
	}
	m := types.SellMatch{
		Asset:           asset,
		SellSymbol:      sell.Symbol,
		SellRow:         sell.Row,
		SellTime:        sell.Timestamp,
		LotID:           lot.ID,
		PurchaseTime:    lot.PurchaseTime,
		MatchedQuantity: taken,
		SellPrice:       sellPrice,
		CostBasis:       lot.CostPrice,
		ProfitLoss:      sellPrice.Sub(lot.CostPrice).Mul(taken),
		TDS:             tds,
	}
	logger.Match(ctx, asset, lot.ID, taken.String(), sellPrice.String(), lot.CostPrice.String(), "row", sell.Row)
	return m, nil
}

// addDailyFIFO turns the matches into one weighted-average row per sell day,
// keeping the individual matches for drill-down.
func (p *pass) addDailyFIFO(asset string, matches []types.SellMatch) {
	days := map[string][]types.SellMatch{}
	var keys []string
	for _, m := range matches {
		k := types.DayKey(m.SellTime)
		if _, ok := days[k]; !ok {
			keys = append(keys, k)
		}
		days[k] = append(days[k], m)
	}

	// Sells are processed in time order, so keys are already ascending.
	for _, k := range keys {
		var qty, cost, proceeds, tds decimal.Decimal
		for _, m := range days[k] {
			qty = qty.Add(m.MatchedQuantity)
			cost = cost.Add(m.CostBasis.Mul(m.MatchedQuantity))
			proceeds = proceeds.Add(m.SellPrice.Mul(m.MatchedQuantity))
			tds = tds.Add(m.TDS)
		}
		if qty.IsZero() {
			continue
		}
		out := summarize(k, asset, cost.Div(qty), proceeds.Div(qty), qty, tds)
		out.UsdtPurchaseCostInr = cost
		out.Matches = days[k]
		p.res.Summaries.Add(out)
	}
}

func (p *pass) skipUnmatchedSells(ctx context.Context, asset string, unmatched map[string][]types.Transaction) {
	if len(unmatched) == 0 {
		return
	}
	keys := make([]string, 0, len(unmatched))
	for k := range unmatched {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.skip(ctx, asset, k, "sell quantity exceeds available buy lots", leg{}, sum(unmatched[k]))
	}
}

func (p *pass) collectOpenLots(ctx context.Context, asset string) error {
	lots, err := p.lots.Lots(ctx, asset)
	if err != nil {
		return err
	}
	var open []types.FIFOLot
	for _, l := range lots {
		if !l.Exhausted() {
			open = append(open, l)
		}
	}
	if len(open) > 0 {
		p.res.OpenLots[asset] = open
	}
	return nil
}
