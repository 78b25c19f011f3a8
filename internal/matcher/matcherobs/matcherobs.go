package matcherobs

import (
	"context"
	"errors"
	"time"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/trace"
	"inr-trade-matcher/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

type observableMatcher struct {
	matcher interfaces.Matcher
}

var _ interfaces.Matcher = (*observableMatcher)(nil)

func Wrap(m interfaces.Matcher) interfaces.Matcher {
	return &observableMatcher{
		matcher: m,
	}
}

func (om *observableMatcher) Match(ctx context.Context, txs []types.Transaction, strategy types.Strategy) (*types.MatchResult, error) {
	ctx, span := trace.StartSpan(ctx, "matcher.Match")
	defer span.End()

	if trace.Enabled() {
		span.SetAttributes(
			attribute.String("strategy", strategy.String()),
			attribute.Int("transactions", len(txs)),
		)
	}

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting matching pass",
		"strategy", strategy.String(),
		"transactions", len(txs),
	)

	result, err := om.matcher.Match(ctx, txs, strategy)
	if err != nil && !errors.Is(err, matcher.ErrNoMatches) {
		logger.ErrorWithErrSkip(ctx, 1, "Matching pass failed", err,
			"strategy", strategy.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	if err != nil {
		logger.WarnSkip(ctx, 1, "Matching pass produced no summaries",
			"strategy", strategy.String(),
			"skipped", result.Skipped.Count(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, err
	}

	logger.InfoSkip(ctx, 1, "Matching pass completed",
		"strategy", strategy.String(),
		"summaries", result.Summaries.Count(),
		"skipped", result.Skipped.Count(),
		"open_lot_assets", len(result.OpenLots),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
