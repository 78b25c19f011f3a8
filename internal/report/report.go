// Package report writes match results and P&L reports as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

const (
	MinPrecision     = 2
	MaxPrecision     = 10
	DefaultPrecision = 6
)

var summaryHeaders = []string{
	"Date", "Asset", "INR Price", "USDT Price", "Coin Sold Qty",
	"USDT Purchase Cost", "USDT Quantity", "USDT Purchase Cost (INR)", "TDS",
}

type Writer struct {
	precision int32
}

// New clamps precision into the supported 2-10 range.
func New(precision int) *Writer {
	if precision == 0 {
		precision = DefaultPrecision
	}
	precision = max(MinPrecision, min(MaxPrecision, precision))
	return &Writer{precision: int32(precision)}
}

func (rw *Writer) num(d decimal.Decimal) string {
	return d.StringFixed(rw.precision)
}

// WriteSummaries writes one row per summary grouped by day, each day closed by
// a Total row. Chronological results also carry the lot and purchase date.
func (rw *Writer) WriteSummaries(out io.Writer, res *types.MatchResult) error {
	w := csv.NewWriter(out)
	perMatch := res.Strategy == types.StrategyChronologicalFIFO

	headers := summaryHeaders
	if perMatch {
		headers = append(append([]string(nil), headers...), "Lot ID", "Purchase Date")
	}
	if err := w.Write(headers); err != nil {
		return err
	}

	for _, key := range sortedKeys(res.Summaries) {
		var qty, usdtQty, inrCost, tds decimal.Decimal
		for _, s := range res.Summaries[key] {
			rec := []string{
				s.Date, s.Asset,
				rw.num(s.InrPrice), rw.num(s.UsdtPrice), rw.num(s.CoinSoldQty),
				rw.num(s.UsdtPurchaseCost), rw.num(s.UsdtQuantity), rw.num(s.UsdtPurchaseCostInr),
				rw.num(s.TDS),
			}
			if perMatch {
				lotID, bought := "", ""
				if len(s.Matches) > 0 {
					lotID = strconv.Itoa(s.Matches[0].LotID)
					bought = types.DisplayDate(types.DayKey(s.Matches[0].PurchaseTime))
				}
				rec = append(rec, lotID, bought)
			}
			if err := w.Write(rec); err != nil {
				return err
			}
			qty = qty.Add(s.CoinSoldQty)
			usdtQty = usdtQty.Add(s.UsdtQuantity)
			inrCost = inrCost.Add(s.UsdtPurchaseCostInr)
			tds = tds.Add(s.TDS)
		}
		total := []string{"Total", "", "", "", rw.num(qty), "", rw.num(usdtQty), rw.num(inrCost), rw.num(tds)}
		if perMatch {
			total = append(total, "", "")
		}
		if err := w.Write(total); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteMatches writes every individual lot/sell match.
func (rw *Writer) WriteMatches(out io.Writer, res *types.MatchResult) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{
		"Sell Date", "Asset", "Sell Row", "Lot ID", "Purchase Date",
		"Matched Qty", "Sell Price", "Cost Basis", "Profit/Loss", "TDS",
	}); err != nil {
		return err
	}
	var pnl decimal.Decimal
	for _, key := range sortedKeys(res.Summaries) {
		for _, s := range res.Summaries[key] {
			for _, m := range s.Matches {
				if err := w.Write([]string{
					s.Date, m.Asset, strconv.Itoa(m.SellRow), strconv.Itoa(m.LotID),
					types.DisplayDate(types.DayKey(m.PurchaseTime)),
					rw.num(m.MatchedQuantity), rw.num(m.SellPrice), rw.num(m.CostBasis),
					rw.num(m.ProfitLoss), rw.num(m.TDS),
				}); err != nil {
					return err
				}
				pnl = pnl.Add(m.ProfitLoss)
			}
		}
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", "", "", "", rw.num(pnl), ""}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (rw *Writer) WriteSkipped(out io.Writer, res *types.MatchResult) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"Date", "Asset", "Buy Qty", "Sell Qty", "Avg Buy Price", "Avg Sell Price", "TDS", "Reason"}); err != nil {
		return err
	}
	for _, key := range sortedKeys(res.Skipped) {
		for _, s := range res.Skipped[key] {
			if err := w.Write([]string{
				s.Date, s.Asset, rw.num(s.BuyQuantity), rw.num(s.SellQuantity),
				rw.num(s.InrPrice), rw.num(s.UsdtPrice), rw.num(s.TDS), s.Reason,
			}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// WritePnL writes the matches with a TOTAL row, then the per-asset breakdown.
func (rw *Writer) WritePnL(out io.Writer, r *types.PnLReport) error {
	w := csv.NewWriter(out)
	rows := [][]string{{"Asset", "Buy Date", "Sell Date", "Quantity", "Buy Price", "Sell Price", "Investment", "Proceeds", "P&L", "P&L %"}}
	for _, m := range r.Matches {
		rows = append(rows, []string{
			m.Asset, types.DisplayDate(m.BuyDate), types.DisplayDate(m.SellDate),
			rw.num(m.Quantity), rw.num(m.BuyPrice), rw.num(m.SellPrice),
			rw.num(m.Investment), rw.num(m.Proceeds), rw.num(m.ProfitLoss), m.ProfitLossPct.StringFixed(2),
		})
	}
	rows = append(rows,
		[]string{"TOTAL", "", "", "", "", "", rw.num(r.TotalInvestment), "", rw.num(r.TotalPnL), r.OverallReturnPct.StringFixed(2)},
		[]string{"Win Rate %", r.WinRate.StringFixed(2), "Winning", strconv.Itoa(r.WinningMatches), "Losing", strconv.Itoa(r.LosingMatches)},
		nil,
		[]string{"Asset", "Matches", "Quantity", "Investment", "P&L", "Return %"},
	)

	names := make([]string, 0, len(r.ByAsset))
	for k := range r.ByAsset {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		a := r.ByAsset[k]
		rows = append(rows, []string{
			a.Asset, strconv.Itoa(a.Matches), rw.num(a.Quantity),
			rw.num(a.TotalInvestment), rw.num(a.TotalPnL), a.ReturnPct.StringFixed(2),
		})
	}
	for _, u := range r.Unmatched {
		rows = append(rows, []string{"UNMATCHED", u.Asset, types.DisplayDate(u.SellDate), rw.num(u.Quantity)})
	}

	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// WriteFiles writes the result files for one run into dir and returns their
// paths.
func (rw *Writer) WriteFiles(dir, prefix string, res *types.MatchResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	type part struct {
		name  string
		write func(io.Writer, *types.MatchResult) error
		skip  bool
	}
	parts := []part{
		{"summary", rw.WriteSummaries, false},
		{"matches", rw.WriteMatches, res.OpenLots == nil},
		{"skipped", rw.WriteSkipped, res.Skipped.Count() == 0},
	}

	var paths []string
	for _, p := range parts {
		if p.skip {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.csv", prefix, res.Strategy, p.name))
		if err := writeFile(path, func(f io.Writer) error { return p.write(f, res) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func sortedKeys(m types.SummaryMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
