// Package matcher reconciles INR buy lots against USDT sell lots per asset
// using one of four strategies.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/inventory"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/store"
	"inr-trade-matcher/internal/types"
)

// ErrNoMatches is returned, together with the result, when a non-empty input
// produced no summaries. The result still carries any skipped items.
var ErrNoMatches = errors.New("no matching buys/sells found")

// EngineError wraps a failure that aborted a matching pass.
type EngineError struct {
	Strategy types.Strategy
	Asset    string
	Err      error
}

func (e *EngineError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("%s matcher: %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("%s matcher failed on %s: %v", e.Strategy, e.Asset, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

type Options struct {
	BuyWindow types.BuyWindow
	// TrackSkipped records unmatched activity in MatchResult.Skipped instead
	// of only logging it.
	TrackSkipped bool
	Stablecoins  assets.Stablecoins
	// YieldEvery hands the processor back to the scheduler after this many
	// assets. Zero disables yielding.
	YieldEvery int
	Inventory  inventory.Factory
}

func DefaultOptions() Options {
	return Options{
		BuyWindow:   types.BuyWindowCumulative,
		Stablecoins: assets.NewStablecoins(store.DefaultStablecoins),
		YieldEvery:  10,
		Inventory:   inventory.MemoryFactory(),
	}
}

// OptionsFromConfig maps the matcher section of the config onto Options.
func OptionsFromConfig(cfg *store.Config) (Options, error) {
	factory, err := inventory.NewFactory(cfg.Inventory.Backend, cfg.Inventory.SQLitePath, cfg.Inventory.SpillThreshold)
	if err != nil {
		return Options{}, err
	}
	return Options{
		BuyWindow:    types.BuyWindow(cfg.BuyWindow),
		TrackSkipped: cfg.TrackSkipped,
		Stablecoins:  assets.NewStablecoins(cfg.Stablecoins),
		YieldEvery:   cfg.YieldEvery,
		Inventory:    factory,
	}, nil
}

type engine struct {
	opts Options
}

var _ interfaces.Matcher = (*engine)(nil)

func newEngine(opts Options) *engine {
	def := DefaultOptions()
	if opts.BuyWindow == "" {
		opts.BuyWindow = def.BuyWindow
	}
	if opts.Stablecoins == nil {
		opts.Stablecoins = def.Stablecoins
	}
	if opts.Inventory == nil {
		opts.Inventory = def.Inventory
	}
	if opts.YieldEvery < 0 {
		opts.YieldEvery = 0
	}
	return &engine{opts: opts}
}

// pass holds the state of one Match call.
type pass struct {
	opts     Options
	strategy types.Strategy
	res      *types.MatchResult
	lots     interfaces.BuyInventoryStore
}

type assetFunc func(ctx context.Context, asset string, txs []types.Transaction) error

func (e *engine) Match(ctx context.Context, txs []types.Transaction, strategy types.Strategy) (*types.MatchResult, error) {
	p := &pass{opts: e.opts, strategy: strategy, res: types.NewMatchResult(strategy)}

	var run assetFunc
	switch strategy {
	case types.StrategyAggregate:
		run = p.aggregate
	case types.StrategyDailyProportional:
		if e.opts.BuyWindow != types.BuyWindowCumulative && e.opts.BuyWindow != types.BuyWindowSameDay {
			return nil, &EngineError{Strategy: strategy, Err: fmt.Errorf("unknown buy window %q", e.opts.BuyWindow)}
		}
		run = p.daily
	case types.StrategyFIFO:
		run = p.fifo
	case types.StrategyChronologicalFIFO:
		run = p.chronological
	default:
		return nil, &EngineError{Strategy: strategy, Err: errors.New("unknown strategy")}
	}

	if strategy == types.StrategyFIFO || strategy == types.StrategyChronologicalFIFO {
		lots, err := e.opts.Inventory(ctx, countBuys(txs))
		if err != nil {
			return nil, &EngineError{Strategy: strategy, Err: fmt.Errorf("open inventory: %w", err)}
		}
		defer func() {
			if err := lots.Close(); err != nil {
				logger.Warn(ctx, "Failed to close buy inventory", "error", err)
			}
		}()
		p.lots = lots
		p.res.OpenLots = map[string][]types.FIFOLot{}
	}

	groups := assets.Group(txs)
	for i, asset := range groups.Assets() {
		if err := ctx.Err(); err != nil {
			return nil, &EngineError{Strategy: strategy, Asset: asset, Err: err}
		}
		if e.opts.YieldEvery > 0 && i > 0 && i%e.opts.YieldEvery == 0 {
			runtime.Gosched()
		}

		group := groups[asset]
		if e.opts.Stablecoins.Contains(asset) {
			p.stablecoin(ctx, asset, group)
			continue
		}
		if err := run(ctx, asset, group); err != nil {
			return nil, &EngineError{Strategy: strategy, Asset: asset, Err: err}
		}
	}

	logger.Info(ctx, "Matching pass finished",
		"strategy", strategy.String(),
		"transactions", len(txs),
		"assets", len(groups),
		"summaries", p.res.Summaries.Count(),
		"skipped", p.res.Skipped.Count(),
	)

	if len(txs) > 0 && p.res.Summaries.Count() == 0 {
		return p.res, ErrNoMatches
	}
	return p.res, nil
}

func countBuys(txs []types.Transaction) int {
	n := 0
	for _, tx := range txs {
		if tx.Side == types.SideBuy && tx.Quote == types.QuoteINR {
			n++
		}
	}
	return n
}
