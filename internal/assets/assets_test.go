package assets

import (
	"strings"
	"testing"
	"time"

	"inr-trade-matcher/internal/types"
)

func TestBaseAsset(t *testing.T) {
	stable := NewStablecoins([]string{"usdt", " USDC ", ""})
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTCINR", "BTC"},
		{"btcusdt", "BTC"},
		{"ETHUSDC", "ETH"},
		{"SOLDAI", "SOL"},
		{"USDTINR", "USDT"},
		{"USDCINR", "USDC"},
		{"DAIINR", "DAI"},
		{"INR", ""},
		{"XRPBTC", "XRPBTC"},
	}
	for _, tt := range tests {
		if got := BaseAsset(tt.symbol, stable); got != tt.want {
			t.Errorf("BaseAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
	if len(stable) != 2 {
		t.Errorf("stablecoins = %v", stable)
	}
}

func TestQuoteCurrency(t *testing.T) {
	tests := []struct {
		symbol string
		want   types.QuoteCurrency
	}{
		{"BTCINR", types.QuoteINR},
		{"USDTINR", types.QuoteINR},
		{"BTCUSDT", types.QuoteUSDT},
		{"ETHUSDC", types.QuoteUSDC},
		{"ETHDAI", types.QuoteDAI},
		{"XRPBTC", types.QuoteUnknown},
	}
	for _, tt := range tests {
		if got := QuoteCurrency(tt.symbol); got != tt.want {
			t.Errorf("QuoteCurrency(%q) = %s, want %s", tt.symbol, got, tt.want)
		}
	}
}

func TestGroupAndFilter(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []types.Transaction{
		{Row: 0, BaseAsset: "ETH", Quote: types.QuoteUSDT, Side: types.SideSell, Timestamp: day.Add(2 * time.Hour)},
		{Row: 1, BaseAsset: "BTC", Quote: types.QuoteINR, Side: types.SideBuy, Timestamp: day.Add(time.Hour)},
		{Row: 2, BaseAsset: "", Quote: types.QuoteINR, Side: types.SideBuy},
		{Row: 3, BaseAsset: "ETH", Quote: types.QuoteINR, Side: types.SideBuy, Timestamp: day.Add(time.Hour)},
		{Row: 4, BaseAsset: "ETH", Quote: types.QuoteINR, Side: types.SideBuy, Timestamp: day.Add(time.Hour)},
		{Row: 5, BaseAsset: "ETH", Quote: types.QuoteUnknown, Side: types.SideBuy},
	}

	g := Group(txs)
	if got := strings.Join(g.Assets(), ","); got != "BTC,ETH" {
		t.Fatalf("assets = %s", got)
	}
	if len(g["ETH"]) != 4 {
		t.Errorf("ETH group = %d", len(g["ETH"]))
	}

	buys := Filter(g["ETH"], types.QuoteINR, types.SideBuy)
	if len(buys) != 2 || buys[0].Row != 3 || buys[1].Row != 4 {
		t.Errorf("buys = %+v", buys)
	}
	if got := Filter(g["ETH"], types.QuoteUSDT, types.SideBuy); len(got) != 0 {
		t.Errorf("unexpected %+v", got)
	}

	all := append([]types.Transaction(nil), g["ETH"][:3]...)
	SortByTime(all)
	if all[0].Row != 3 || all[1].Row != 4 || all[2].Row != 0 {
		t.Errorf("sorted rows = %d %d %d", all[0].Row, all[1].Row, all[2].Row)
	}
}
