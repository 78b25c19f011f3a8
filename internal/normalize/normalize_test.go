package normalize

import (
	"context"
	"testing"
	"time"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

func newNormalizer() *Normalizer {
	return New(assets.NewStablecoins([]string{"USDT", "USDC"}))
}

func TestExcelSerialToTime(t *testing.T) {
	tests := []struct {
		serial float64
		want   time.Time
	}{
		{25569, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{45352, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{45352.75, time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := ExcelSerialToTime(tt.serial); !got.Equal(tt.want) {
			t.Errorf("ExcelSerialToTime(%v) = %v, want %v", tt.serial, got, tt.want)
		}
	}
}

func TestNormalizeRow(t *testing.T) {
	row := []any{" btcinr ", "ignored", 45352.75, "buy", "1,00,000.50", "0.5", "50000.25", "12"}
	tx := newNormalizer().Normalize(context.Background(), 3, row)
	if tx == nil {
		t.Fatal("row skipped")
	}
	if tx.Symbol != "BTCINR" || tx.BaseAsset != "BTC" || tx.Quote != types.QuoteINR {
		t.Errorf("symbol fields = %s %s %s", tx.Symbol, tx.BaseAsset, tx.Quote)
	}
	if tx.Side != types.SideBuy {
		t.Errorf("side = %s", tx.Side)
	}
	if !tx.Price.Equal(decimal.RequireFromString("100000.50")) {
		t.Errorf("price = %s", tx.Price)
	}
	if !tx.TotalCost.Equal(decimal.RequireFromString("50000.25")) || !tx.TDS.Equal(decimal.NewFromInt(12)) {
		t.Errorf("total/tds = %s/%s", tx.TotalCost, tx.TDS)
	}
	if tx.Row != 3 || tx.DayKey() != "2024-03-01" {
		t.Errorf("row/day = %d/%s", tx.Row, tx.DayKey())
	}
}

func TestNormalizeSkipsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  []any
	}{
		{"short", []any{"BTCINR", "", 45352.0, "BUY", "1"}},
		{"empty symbol", []any{"", "", 45352.0, "BUY", "1", "1"}},
		{"bad side", []any{"BTCINR", "", 45352.0, "HOLD", "1", "1"}},
		{"non numeric price", []any{"BTCINR", "", 45352.0, "BUY", "abc", "1"}},
		{"missing quantity", []any{"BTCINR", "", 45352.0, "SELL", "1", nil}},
		{"negative quantity", []any{"BTCINR", "", 45352.0, "SELL", "1", "-2"}},
	}
	n := newNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tx := n.Normalize(context.Background(), 0, tt.row); tx != nil {
				t.Errorf("expected skip, got %+v", tx)
			}
		})
	}
}

func TestNormalizeOptionalColumns(t *testing.T) {
	n := newNormalizer()
	tx := n.Normalize(context.Background(), 0, []any{"ETHUSDT", "", 45352.0, "SELL", 2000.0, 1.5})
	if tx == nil {
		t.Fatal("row skipped")
	}
	if !tx.TotalCost.IsZero() || !tx.TDS.IsZero() {
		t.Errorf("total/tds = %s/%s", tx.TotalCost, tx.TDS)
	}
	if tx.Quote != types.QuoteUSDT || tx.Side != types.SideSell {
		t.Errorf("quote/side = %s/%s", tx.Quote, tx.Side)
	}

	// Non-positive totals fall back to price x quantity.
	tx = n.Normalize(context.Background(), 0, []any{"ETHINR", "", 45352.0, "BUY", "10", "2", "0", "-1"})
	if !tx.TotalCost.IsZero() || !tx.TDS.IsZero() {
		t.Errorf("total/tds = %s/%s", tx.TotalCost, tx.TDS)
	}
	if !tx.Cost().Equal(decimal.NewFromInt(20)) {
		t.Errorf("cost = %s", tx.Cost())
	}
}

func TestNormalizeDates(t *testing.T) {
	n := newNormalizer()
	tests := []struct {
		name    string
		cell    any
		wantDay string
	}{
		{"serial string", "45352", "2024-03-01"},
		{"iso", "2024-03-05 10:11:12", "2024-03-05"},
		{"day first", "07/03/2024", "2024-03-07"},
		{"time value", time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), "2024-03-09"},
		{"unparseable", "next tuesday", "raw:next tuesday"},
		{"old serial kept", 10000.0, "1927-05-18"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := n.Normalize(context.Background(), 0, []any{"BTCINR", "", tt.cell, "BUY", "1", "1"})
			if tx == nil {
				t.Fatal("row skipped")
			}
			if got := tx.DayKey(); got != tt.wantDay {
				t.Errorf("day = %q, want %q", got, tt.wantDay)
			}
		})
	}
}

func TestNormalizeStablecoinPair(t *testing.T) {
	tx := newNormalizer().Normalize(context.Background(), 0, []any{"USDTINR", "", 45352.0, "BUY", "90", "10"})
	if tx == nil || tx.BaseAsset != "USDT" || tx.Quote != types.QuoteINR {
		t.Fatalf("tx = %+v", tx)
	}
}

func TestNormalizeAll(t *testing.T) {
	rows := [][]any{
		{"BTCINR", "", 45352.0, "BUY", "100", "1"},
		{"BTCINR", "", 45352.0, "BUY", "x", "1"},
		{"BTCUSDT", "", "someday", "SELL", "1", "1"},
		{"short"},
	}
	txs, st := newNormalizer().NormalizeAll(context.Background(), rows)
	if len(txs) != 2 {
		t.Fatalf("kept %d", len(txs))
	}
	want := Stats{Rows: 4, Kept: 2, Skipped: 2, BadDate: 1}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	if txs[1].Row != 2 {
		t.Errorf("row index = %d", txs[1].Row)
	}
}
