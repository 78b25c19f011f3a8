// Package normalize turns raw spreadsheet rows into typed transactions.
//
// Row contract: index 0 pair symbol, 2 date serial, 3 side, 4 price,
// 5 quantity, 6 optional total cost, 7 optional TDS.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

const (
	colSymbol    = 0
	colDate      = 2
	colSide      = 3
	colPrice     = 4
	colQuantity  = 5
	colTotalCost = 6
	colTDS       = 7

	minColumns = 6

	// excelUnixEpoch is the serial of 1970-01-01 in the 1900 date system.
	excelUnixEpoch = 25569
	msPerDay       = 86400000

	minSaneYear = 1950
	maxSaneYear = 2100
)

var textLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04",
	"02-01-2006",
}

// Stats counts what a batch normalization dropped.
type Stats struct {
	Rows    int
	Kept    int
	Skipped int
	BadDate int
}

type Normalizer struct {
	stable assets.Stablecoins
}

func New(stable assets.Stablecoins) *Normalizer {
	return &Normalizer{stable: stable}
}

// Normalize converts one row. A nil transaction means the row is skipped; the
// reason is logged and never returned as an error.
func (n *Normalizer) Normalize(ctx context.Context, rowIdx int, row []any) *types.Transaction {
	tx, reason := n.normalize(ctx, rowIdx, row)
	if tx == nil {
		logger.Debug(ctx, "Row skipped", "row", rowIdx, "reason", reason)
	}
	return tx
}

// NormalizeAll converts a batch, skipping bad rows.
func (n *Normalizer) NormalizeAll(ctx context.Context, rows [][]any) ([]types.Transaction, Stats) {
	st := Stats{Rows: len(rows)}
	out := make([]types.Transaction, 0, len(rows))
	for i, row := range rows {
		tx := n.Normalize(ctx, i, row)
		if tx == nil {
			st.Skipped++
			continue
		}
		if !tx.HasTime() {
			st.BadDate++
		}
		out = append(out, *tx)
	}
	st.Kept = len(out)
	if st.Skipped > 0 {
		logger.Info(ctx, "Rows skipped during normalization", "rows", st.Rows, "skipped", st.Skipped)
	}
	return out, st
}

func (n *Normalizer) normalize(ctx context.Context, rowIdx int, row []any) (tx *types.Transaction, reason string) {
	defer func() {
		if r := recover(); r != nil {
			tx, reason = nil, fmt.Sprintf("panic: %v", r)
		}
	}()

	if len(row) < minColumns {
		return nil, "short row"
	}

	symbol := strings.ToUpper(strings.TrimSpace(cellString(row[colSymbol])))
	if symbol == "" {
		return nil, "empty symbol"
	}

	side := types.Side(strings.ToUpper(strings.TrimSpace(cellString(row[colSide]))))
	if side != types.SideBuy && side != types.SideSell {
		return nil, "unknown side " + string(side)
	}

	price, ok := parseAmount(row[colPrice])
	if !ok {
		return nil, "bad price"
	}
	qty, ok := parseAmount(row[colQuantity])
	if !ok {
		return nil, "bad quantity"
	}
	if price.IsNegative() || qty.IsNegative() {
		return nil, "negative price or quantity"
	}

	t := &types.Transaction{
		Row:          rowIdx,
		RawDateToken: strings.TrimSpace(cellString(row[colDate])),
		Symbol:       symbol,
		BaseAsset:    assets.BaseAsset(symbol, n.stable),
		Quote:        assets.QuoteCurrency(symbol),
		Side:         side,
		Price:        price,
		Quantity:     qty,
	}
	if t.BaseAsset == "" {
		return nil, "empty base asset"
	}

	if ts, ok := parseDate(row[colDate]); ok {
		if y := ts.Year(); y < minSaneYear || y > maxSaneYear {
			logger.Warn(ctx, "Trade date outside expected range", "row", rowIdx, "date", ts.Format(time.RFC3339), "raw", t.RawDateToken)
		}
		t.Timestamp = ts
	}

	if len(row) > colTotalCost {
		if v, ok := parseAmount(row[colTotalCost]); ok && v.IsPositive() {
			t.TotalCost = v
		}
	}
	if len(row) > colTDS {
		if v, ok := parseAmount(row[colTDS]); ok && !v.IsNegative() {
			t.TDS = v
		}
	}
	return t, ""
}

// ExcelSerialToTime converts a 1900-system date serial to UTC.
func ExcelSerialToTime(serial float64) time.Time {
	ms := math.Round((serial - excelUnixEpoch) * msPerDay)
	return time.UnixMilli(int64(ms)).UTC()
}

func parseDate(cell any) (time.Time, bool) {
	switch v := cell.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v.UTC(), !v.IsZero()
	}
	if f, ok := cellFloat(cell); ok {
		return ExcelSerialToTime(f), true
	}
	s := strings.TrimSpace(cellString(cell))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseAmount(cell any) (decimal.Decimal, bool) {
	switch v := cell.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	}
	s := strings.TrimSpace(strings.ReplaceAll(cellString(cell), ",", ""))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func cellFloat(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
