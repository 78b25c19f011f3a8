package interfaces

import (
	"context"

	"inr-trade-matcher/internal/types"
)

type PnLAnalyzer interface {
	Analyze(ctx context.Context, buySide, sellSide types.SummaryMap) (*types.PnLReport, error)
}
