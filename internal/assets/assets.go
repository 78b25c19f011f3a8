// Package assets derives base assets and quote currencies from exchange pair
// symbols and partitions transactions per asset.
package assets

import (
	"regexp"
	"sort"
	"strings"

	"inr-trade-matcher/internal/types"
)

var quoteSuffix = regexp.MustCompile(`(INR|USDT|USDC|DAI)$`)

// quotePriority is the suffix order used to decide the quote currency.
var quotePriority = []types.QuoteCurrency{
	types.QuoteINR,
	types.QuoteUSDT,
	types.QuoteUSDC,
	types.QuoteDAI,
}

// Stablecoins is a set of symbols treated as stablecoins.
type Stablecoins map[string]struct{}

func NewStablecoins(symbols []string) Stablecoins {
	s := make(Stablecoins, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			s[sym] = struct{}{}
		}
	}
	return s
}

func (s Stablecoins) Contains(asset string) bool {
	_, ok := s[strings.ToUpper(asset)]
	return ok
}

// BaseAsset strips the quote suffix from a pair symbol. A stablecoin quoted in
// INR (e.g. USDTINR) resolves to the stablecoin itself.
func BaseAsset(symbol string, stable Stablecoins) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(sym, "INR") {
		if coin := strings.TrimSuffix(sym, "INR"); stable.Contains(coin) {
			return coin
		}
	}
	return quoteSuffix.ReplaceAllString(sym, "")
}

// QuoteCurrency returns the quote currency by suffix, or UNKNOWN.
func QuoteCurrency(symbol string) types.QuoteCurrency {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quotePriority {
		if strings.HasSuffix(sym, string(q)) {
			return q
		}
	}
	return types.QuoteUnknown
}

// Groups maps a base asset to its transactions in input order.
type Groups map[string][]types.Transaction

// Group partitions transactions by base asset. Transactions without a base
// asset are dropped.
func Group(txs []types.Transaction) Groups {
	g := make(Groups)
	for _, tx := range txs {
		if tx.BaseAsset == "" {
			continue
		}
		g[tx.BaseAsset] = append(g[tx.BaseAsset], tx)
	}
	return g
}

// Assets returns the group keys sorted so every pass visits assets in the
// same order.
func (g Groups) Assets() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Filter returns the transactions with the given quote and side.
func Filter(txs []types.Transaction, quote types.QuoteCurrency, side types.Side) []types.Transaction {
	var out []types.Transaction
	for _, tx := range txs {
		if tx.Quote == quote && tx.Side == side {
			out = append(out, tx)
		}
	}
	return out
}

// SortByTime orders transactions by timestamp, keeping input order for ties.
func SortByTime(txs []types.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
}
