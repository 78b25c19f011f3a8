// Package service runs uploaded trade files through ingestion, normalization,
// matching and P&L reconciliation.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/auditlog"
	"inr-trade-matcher/internal/ingest"
	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/matcher/matcherobs"
	"inr-trade-matcher/internal/normalize"
	"inr-trade-matcher/internal/pnl"
	"inr-trade-matcher/internal/pnl/pnlobs"
	"inr-trade-matcher/internal/store"
	"inr-trade-matcher/internal/types"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrParsingFailed = errors.New("failed to parse trade file")

const (
	ckMatch = "match_%s_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// Result is one processed file.
type Result struct {
	RunID string             `json:"run_id"`
	File  string             `json:"file"`
	Stats normalize.Stats    `json:"stats"`
	Match *types.MatchResult `json:"result"`
}

// Reconciliation is a buy-side and a sell-side file with their P&L report.
type Reconciliation struct {
	BuySide  *Result          `json:"buy_side"`
	SellSide *Result          `json:"sell_side"`
	Report   *types.PnLReport `json:"report"`
}

type Service struct {
	matcher    interfaces.Matcher
	analyzer   interfaces.PnLAnalyzer
	normalizer *normalize.Normalizer
	audit      *auditlog.Log
	cache      *cache.Cache
}

// New wires a service. audit may be nil to disable the audit log.
func New(m interfaces.Matcher, a interfaces.PnLAnalyzer, n *normalize.Normalizer, audit *auditlog.Log, c *cache.Cache) *Service {
	if c == nil {
		c = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	return &Service{matcher: m, analyzer: a, normalizer: n, audit: audit, cache: c}
}

func NewFromConfig(cfg *store.Config) (*Service, error) {
	opts, err := matcher.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	var audit *auditlog.Log
	if cfg.Audit.Enabled {
		audit = auditlog.New(cfg.Audit.Dir)
		if err := audit.CompressOlder(cfg.Audit.RetentionDays); err != nil {
			logger.Warn(context.Background(), "Audit log compression failed", "error", err)
		}
	}
	return New(
		matcherobs.Wrap(matcher.New(opts)),
		pnlobs.Wrap(pnl.New(pnl.Options{SellPrice: cfg.PnL.SellPrice})),
		normalize.New(assets.NewStablecoins(cfg.Stablecoins)),
		audit,
		cache.New(cfg.Server.CacheTTL, 2*cfg.Server.CacheTTL),
	), nil
}

// Process matches one uploaded file. Results are cached by content and
// strategy. A file that matches nothing returns its result together with an
// error wrapping matcher.ErrNoMatches.
func (s *Service) Process(ctx context.Context, name string, data []byte, strategy types.Strategy) (*Result, error) {
	sum := sha256.Sum256(data)
	key := fmt.Sprintf(ckMatch, hex.EncodeToString(sum[:]), strategy)
	if cached, found := s.cache.Get(key); found {
		if r, ok := cached.(*Result); ok {
			logger.Debug(ctx, "Match result served from cache", "file", name, "run_id", r.RunID)
			return r, nil
		}
	}

	rows, err := ingest.Read(ctx, bytes.NewReader(data), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	r, err := s.run(ctx, name, rows, strategy)
	if err != nil {
		return r, err
	}
	s.cache.Set(key, r, cache.DefaultExpiration)
	return r, nil
}

// ProcessURL matches an HTML statement fetched from a URL or local path.
func (s *Service) ProcessURL(ctx context.Context, uri string, strategy types.Strategy) (*Result, error) {
	rows, err := ingest.Scrape(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return s.run(ctx, uri, rows, strategy)
}

// Reconcile matches both files with the same strategy, then runs the P&L
// analyzer over their summaries.
func (s *Service) Reconcile(ctx context.Context, buyName string, buyData []byte, sellName string, sellData []byte, strategy types.Strategy) (*Reconciliation, error) {
	buy, err := s.Process(ctx, buyName, buyData, strategy)
	if err != nil {
		return nil, fmt.Errorf("buy-side %s: %w", buyName, err)
	}
	sell, err := s.Process(ctx, sellName, sellData, strategy)
	if err != nil {
		return nil, fmt.Errorf("sell-side %s: %w", sellName, err)
	}
	report, err := s.analyzer.Analyze(ctx, buy.Match.Summaries, sell.Match.Summaries)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{BuySide: buy, SellSide: sell, Report: report}, nil
}

func (s *Service) run(ctx context.Context, name string, rows [][]any, strategy types.Strategy) (*Result, error) {
	runID := uuid.NewString()
	timer := logger.StartOperation(ctx, "service.run", "run_id", runID, "file", name, "strategy", strategy.String())
	ctx = timer.GetContext()

	txs, stats := s.normalizer.NormalizeAll(ctx, rows)
	res, err := s.matcher.Match(ctx, txs, strategy)
	if err != nil && !errors.Is(err, matcher.ErrNoMatches) {
		timer.EndWithError(err)
		return nil, err
	}

	r := &Result{RunID: runID, File: name, Stats: stats, Match: res}
	if s.audit != nil {
		if aerr := s.audit.Record(runID, res); aerr != nil {
			logger.ErrorWithErr(ctx, "Failed to write audit log", aerr, "run_id", runID)
		}
	}
	timer.End("summaries", res.Summaries.Count(), "rows_skipped", stats.Skipped)
	return r, err
}
