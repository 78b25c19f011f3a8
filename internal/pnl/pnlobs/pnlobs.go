package pnlobs

import (
	"context"
	"time"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/trace"
	"inr-trade-matcher/internal/types"
)

type observableAnalyzer struct {
	analyzer interfaces.PnLAnalyzer
}

var _ interfaces.PnLAnalyzer = (*observableAnalyzer)(nil)

func Wrap(a interfaces.PnLAnalyzer) interfaces.PnLAnalyzer {
	return &observableAnalyzer{
		analyzer: a,
	}
}

func (oa *observableAnalyzer) Analyze(ctx context.Context, buySide, sellSide types.SummaryMap) (*types.PnLReport, error) {
	ctx, span := trace.StartSpan(ctx, "pnl.Analyze")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Starting P&L reconciliation",
		"buy_summaries", buySide.Count(),
		"sell_summaries", sellSide.Count(),
	)

	report, err := oa.analyzer.Analyze(ctx, buySide, sellSide)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "P&L reconciliation failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "P&L reconciliation completed",
		"matches", len(report.Matches),
		"total_pnl", report.TotalPnL.StringFixed(2),
		"win_rate", report.WinRate.StringFixed(2),
		"unmatched", len(report.Unmatched),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}
