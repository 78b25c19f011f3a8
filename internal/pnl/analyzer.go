// Package pnl reconciles two matched datasets into a profit and loss report
// with a second, summary-level FIFO pass.
package pnl

import (
	"context"
	"fmt"
	"sort"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/inventory"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

const (
	SellPriceUSDT = "usdt"
	SellPriceINR  = "inr"
)

var hundred = decimal.NewFromInt(100)

type Options struct {
	// SellPrice picks the sell-side summary price: "usdt" uses UsdtPrice and
	// falls back to InrPrice when it is zero, "inr" always uses InrPrice.
	SellPrice string
}

type analyzer struct {
	opts Options
}

var _ interfaces.PnLAnalyzer = (*analyzer)(nil)

func New(opts Options) interfaces.PnLAnalyzer {
	if opts.SellPrice == "" {
		opts.SellPrice = SellPriceUSDT
	}
	return &analyzer{opts: opts}
}

type entry struct {
	date string
	s    types.AssetSummary
}

func (a *analyzer) Analyze(ctx context.Context, buySide, sellSide types.SummaryMap) (*types.PnLReport, error) {
	lots := inventory.NewMemory()
	defer lots.Close()

	// lotDates maps asset → lot ID → buy date key.
	lotDates := map[string][]string{}
	for _, e := range flatten(buySide) {
		qty := e.s.CoinSoldQty
		if !qty.IsPositive() {
			continue
		}
		_, err := lots.AddLot(ctx, types.FIFOLot{
			Asset:             e.s.Asset,
			CostPrice:         e.s.InrPrice,
			OriginalQuantity:  qty,
			RemainingQuantity: qty,
		})
		if err != nil {
			return nil, fmt.Errorf("add pnl lot: %w", err)
		}
		lotDates[e.s.Asset] = append(lotDates[e.s.Asset], e.date)
	}

	report := &types.PnLReport{ByAsset: map[string]*types.AssetPnL{}}
	for _, e := range flatten(sellSide) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		need := e.s.CoinSoldQty
		if !need.IsPositive() {
			continue
		}
		price := a.sellPrice(e.s)
		for need.IsPositive() {
			head, ok, err := lots.Head(ctx, e.s.Asset)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			_, taken, err := lots.Consume(ctx, e.s.Asset, head.ID, need)
			if err != nil {
				return nil, err
			}
			need = need.Sub(taken)
			addMatch(report, newMatch(e.s.Asset, lotDates[e.s.Asset][head.ID], e.date, taken, head.CostPrice, price))
		}
		if need.IsPositive() {
			logger.Warn(ctx, "Sell summary exceeds buy-side inventory",
				"asset", e.s.Asset, "date", e.date, "unmatched", need.String())
			report.Unmatched = append(report.Unmatched, types.UnmatchedSale{
				Asset:    e.s.Asset,
				SellDate: e.date,
				Quantity: need,
			})
		}
	}

	finish(report)
	return report, nil
}

func (a *analyzer) sellPrice(s types.AssetSummary) decimal.Decimal {
	if a.opts.SellPrice == SellPriceINR || s.UsdtPrice.IsZero() {
		return s.InrPrice
	}
	return s.UsdtPrice
}

func newMatch(asset, buyDate, sellDate string, qty, buyPrice, sellPrice decimal.Decimal) types.PnLMatch {
	investment := buyPrice.Mul(qty)
	proceeds := sellPrice.Mul(qty)
	pnl := proceeds.Sub(investment)
	return types.PnLMatch{
		Asset:         asset,
		BuyDate:       buyDate,
		SellDate:      sellDate,
		Quantity:      qty,
		BuyPrice:      buyPrice,
		SellPrice:     sellPrice,
		Investment:    investment,
		Proceeds:      proceeds,
		ProfitLoss:    pnl,
		ProfitLossPct: percent(pnl, investment),
	}
}

// flatten orders summaries by date key; summaries on the same date keep
// their order.
func flatten(m types.SummaryMap) []entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []entry
	for _, k := range keys {
		for _, s := range m[k] {
			out = append(out, entry{date: k, s: s})
		}
	}
	return out
}

func addMatch(r *types.PnLReport, m types.PnLMatch) {
	r.Matches = append(r.Matches, m)
	r.TotalPnL = r.TotalPnL.Add(m.ProfitLoss)
	r.TotalInvestment = r.TotalInvestment.Add(m.Investment)
	switch {
	case m.ProfitLoss.IsPositive():
		r.WinningMatches++
	case m.ProfitLoss.IsNegative():
		r.LosingMatches++
	}

	a := r.ByAsset[m.Asset]
	if a == nil {
		a = &types.AssetPnL{Asset: m.Asset}
		r.ByAsset[m.Asset] = a
	}
	a.Matches++
	a.Quantity = a.Quantity.Add(m.Quantity)
	a.TotalInvestment = a.TotalInvestment.Add(m.Investment)
	a.TotalPnL = a.TotalPnL.Add(m.ProfitLoss)
}

func finish(r *types.PnLReport) {
	r.OverallReturnPct = percent(r.TotalPnL, r.TotalInvestment)
	r.WinRate = percent(decimal.NewFromInt(int64(r.WinningMatches)), decimal.NewFromInt(int64(len(r.Matches))))
	for _, a := range r.ByAsset {
		a.ReturnPct = percent(a.TotalPnL, a.TotalInvestment)
	}
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
