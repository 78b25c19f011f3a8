package matcher

import (
	"context"
	"time"

	"inr-trade-matcher/internal/types"
)

// daily matches each sell day's USDT sells against the weighted average of
// the INR buys in the configured window. Only sell days produce rows.
func (p *pass) daily(ctx context.Context, asset string, txs []types.Transaction) error {
	buys, sells := inrBuysUsdtSells(timed(ctx, asset, txs))
	if len(sells) == 0 {
		if len(buys) > 0 {
			p.skipBuysOnly(ctx, asset, buys)
		}
		return nil
	}

	sellDays, keys := byDay(sells)
	for _, day := range keys {
		daySells := sellDays[day]
		window := p.buyWindow(buys, day)

		s := sum(daySells)
		if len(window) == 0 {
			p.skip(ctx, asset, day, "no qualifying buys for sell day", leg{}, s)
			continue
		}
		b := sum(window)
		p.res.Summaries.Add(summarize(day, asset, b.avg(), s.avg(), s.qty, s.tds))
	}
	return nil
}

// buyWindow returns the buys that count towards a sell day's average.
func (p *pass) buyWindow(buys []types.Transaction, day string) []types.Transaction {
	var out []types.Transaction
	if p.opts.BuyWindow == types.BuyWindowSameDay {
		for _, b := range buys {
			if b.DayKey() == day {
				out = append(out, b)
			}
		}
		return out
	}

	start, err := time.Parse("2006-01-02", day)
	if err != nil {
		return nil
	}
	end := start.AddDate(0, 0, 1)
	for _, b := range buys {
		if b.Timestamp.Before(end) {
			out = append(out, b)
		}
	}
	return out
}
