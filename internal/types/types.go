package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type QuoteCurrency string

const (
	QuoteINR     QuoteCurrency = "INR"
	QuoteUSDT    QuoteCurrency = "USDT"
	QuoteUSDC    QuoteCurrency = "USDC"
	QuoteDAI     QuoteCurrency = "DAI"
	QuoteUnknown QuoteCurrency = "UNKNOWN"
)

// Transaction is one normalized trade row.
type Transaction struct {
	Row          int             `json:"row"`
	Timestamp    time.Time       `json:"timestamp"`
	RawDateToken string          `json:"raw_date"`
	Symbol       string          `json:"symbol"`
	BaseAsset    string          `json:"base_asset"`
	Quote        QuoteCurrency   `json:"quote"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	// TotalCost is zero when the export carried no total column.
	TotalCost decimal.Decimal `json:"total_cost"`
	TDS       decimal.Decimal `json:"tds"`
}

// HasTime reports whether the date cell could be turned into a timestamp.
func (t Transaction) HasTime() bool {
	return !t.Timestamp.IsZero()
}

// Cost returns the explicit total cost when positive, else price × quantity.
func (t Transaction) Cost() decimal.Decimal {
	if t.TotalCost.IsPositive() {
		return t.TotalCost
	}
	return t.Price.Mul(t.Quantity)
}

// UnitPrice is Cost spread over the quantity, falling back to the raw price
// for zero-quantity rows.
func (t Transaction) UnitPrice() decimal.Decimal {
	if !t.Quantity.IsPositive() {
		return t.Price
	}
	if !t.TotalCost.IsPositive() {
		return t.Price
	}
	return t.TotalCost.Div(t.Quantity)
}

// DayKey is the UTC calendar day of the trade, or the raw date token when the
// timestamp could not be parsed.
func (t Transaction) DayKey() string {
	if t.HasTime() {
		return DayKey(t.Timestamp)
	}
	return "raw:" + t.RawDateToken
}

func DayKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// DisplayDate renders a day key the way exchange statements print dates.
// Raw keys print their original token.
func DisplayDate(key string) string {
	if strings.HasPrefix(key, "raw:") {
		return strings.TrimPrefix(key, "raw:")
	}
	d, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return d.Format("02/01/2006")
}

// FIFOLot is a buy-side inventory unit.
type FIFOLot struct {
	ID                int             `json:"id"`
	Asset             string          `json:"asset"`
	Symbol            string          `json:"symbol"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	PurchaseTime      time.Time       `json:"purchase_time"`
	TDS               decimal.Decimal `json:"tds"`
	TotalCost         decimal.Decimal `json:"total_cost"`
}

func (l FIFOLot) Exhausted() bool {
	return !l.RemainingQuantity.IsPositive()
}

// SellMatch is one atomic (lot, sell) matching outcome.
type SellMatch struct {
	Asset           string          `json:"asset"`
	SellSymbol      string          `json:"sell_symbol"`
	SellRow         int             `json:"sell_row"`
	SellTime        time.Time       `json:"sell_time"`
	LotID           int             `json:"lot_id"`
	PurchaseTime    time.Time       `json:"purchase_time"`
	MatchedQuantity decimal.Decimal `json:"matched_quantity"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	ProfitLoss      decimal.Decimal `json:"profit_loss"`
	TDS             decimal.Decimal `json:"tds"`
}

// AssetSummary is one output row: an asset on a date.
type AssetSummary struct {
	DateKey             string          `json:"date_key"`
	Date                string          `json:"date"`
	Asset               string          `json:"asset"`
	InrPrice            decimal.Decimal `json:"inr_price"`
	UsdtPrice           decimal.Decimal `json:"usdt_price"`
	CoinSoldQty         decimal.Decimal `json:"coin_sold_qty"`
	UsdtPurchaseCost    decimal.Decimal `json:"usdt_purchase_cost"`
	UsdtQuantity        decimal.Decimal `json:"usdt_quantity"`
	UsdtPurchaseCostInr decimal.Decimal `json:"usdt_purchase_cost_inr"`
	TDS                 decimal.Decimal `json:"tds"`
	Matches             []SellMatch     `json:"matches,omitempty"`

	// Populated on skipped items only.
	BuyQuantity  decimal.Decimal `json:"buy_quantity,omitempty"`
	SellQuantity decimal.Decimal `json:"sell_quantity,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// SummaryMap groups summaries by day key.
type SummaryMap map[string][]AssetSummary

func (m SummaryMap) Add(s AssetSummary) {
	m[s.DateKey] = append(m[s.DateKey], s)
}

func (m SummaryMap) Count() int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}
