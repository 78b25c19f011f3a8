package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

// Format selects how a run is rendered.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// WriteText renders a human readable run summary: totals per asset, then the
// per-day rows and anything that could not be matched.
func (rw *Writer) WriteText(out io.Writer, res *types.MatchResult) error {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 79) + "\n")
	sb.WriteString(fmt.Sprintf("MATCH REPORT - %s\n", strings.ToUpper(res.Strategy.String())))
	sb.WriteString(strings.Repeat("=", 79) + "\n")
	sb.WriteString(fmt.Sprintf("Summary rows: %d\n", res.Summaries.Count()))
	sb.WriteString(fmt.Sprintf("Skipped rows: %d\n", res.Skipped.Count()))

	totals := map[string]*assetTotal{}
	for _, rows := range res.Summaries {
		for _, s := range rows {
			t, ok := totals[s.Asset]
			if !ok {
				t = &assetTotal{}
				totals[s.Asset] = t
			}
			t.qty = t.qty.Add(s.CoinSoldQty)
			t.usdt = t.usdt.Add(s.UsdtQuantity)
			t.inr = t.inr.Add(s.UsdtPurchaseCostInr)
			t.tds = t.tds.Add(s.TDS)
		}
	}

	sb.WriteString("\nTOTALS BY ASSET\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	if len(totals) == 0 {
		sb.WriteString("No matched activity.\n")
	}
	names := make([]string, 0, len(totals))
	for k := range totals {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		t := totals[name]
		sb.WriteString(fmt.Sprintf("%-10s qty %s  usdt %s  inr cost %s  tds %s\n",
			name, rw.num(t.qty), rw.num(t.usdt), rw.num(t.inr), rw.num(t.tds)))
	}

	sb.WriteString("\nBY DAY\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	for _, key := range sortedKeys(res.Summaries) {
		sb.WriteString(types.DisplayDate(key) + "\n")
		for _, s := range res.Summaries[key] {
			sb.WriteString(fmt.Sprintf("   %-10s inr %s  usdt %s  sold %s\n",
				s.Asset, rw.num(s.InrPrice), rw.num(s.UsdtPrice), rw.num(s.CoinSoldQty)))
		}
	}

	if res.Skipped.Count() > 0 {
		sb.WriteString("\nSKIPPED\n")
		sb.WriteString(strings.Repeat("-", 79) + "\n")
		for _, key := range sortedKeys(res.Skipped) {
			for _, s := range res.Skipped[key] {
				sb.WriteString(fmt.Sprintf("%s %-10s %s\n", types.DisplayDate(key), s.Asset, s.Reason))
			}
		}
	}

	if len(res.OpenLots) > 0 {
		sb.WriteString("\nOPEN LOTS\n")
		sb.WriteString(strings.Repeat("-", 79) + "\n")
		assets := make([]string, 0, len(res.OpenLots))
		for k := range res.OpenLots {
			assets = append(assets, k)
		}
		sort.Strings(assets)
		for _, a := range assets {
			remaining := decimal.Zero
			for _, l := range res.OpenLots[a] {
				remaining = remaining.Add(l.RemainingQuantity)
			}
			sb.WriteString(fmt.Sprintf("%-10s lots %d  remaining %s\n", a, len(res.OpenLots[a]), rw.num(remaining)))
		}
	}

	sb.WriteString("\n" + strings.Repeat("=", 79) + "\n")
	sb.WriteString("END OF REPORT\n")

	_, err := io.WriteString(out, sb.String())
	return err
}

type assetTotal struct {
	qty, usdt, inr, tds decimal.Decimal
}
