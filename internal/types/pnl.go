package types

import "github.com/shopspring/decimal"

// PnLMatch pairs a buy-side summary lot with a sell-side summary.
type PnLMatch struct {
	Asset         string          `json:"asset"`
	BuyDate       string          `json:"buy_date"`
	SellDate      string          `json:"sell_date"`
	Quantity      decimal.Decimal `json:"quantity"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Investment    decimal.Decimal `json:"investment"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
	ProfitLossPct decimal.Decimal `json:"profit_loss_pct"`
}

type AssetPnL struct {
	Asset           string          `json:"asset"`
	Matches         int             `json:"matches"`
	Quantity        decimal.Decimal `json:"quantity"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	ReturnPct       decimal.Decimal `json:"return_pct"`
}

type UnmatchedSale struct {
	Asset    string          `json:"asset"`
	SellDate string          `json:"sell_date"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PnLReport is the output of the reconciliation pass.
type PnLReport struct {
	Matches          []PnLMatch           `json:"matches"`
	TotalPnL         decimal.Decimal      `json:"total_pnl"`
	TotalInvestment  decimal.Decimal      `json:"total_investment"`
	OverallReturnPct decimal.Decimal      `json:"overall_return_pct"`
	WinningMatches   int                  `json:"winning_matches"`
	LosingMatches    int                  `json:"losing_matches"`
	WinRate          decimal.Decimal      `json:"win_rate"`
	ByAsset          map[string]*AssetPnL `json:"by_asset"`
	Unmatched        []UnmatchedSale      `json:"unmatched,omitempty"`
}
