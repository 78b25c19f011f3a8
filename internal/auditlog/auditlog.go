// Package auditlog appends every match and skipped item of a run to a daily
// JSONL file.
package auditlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"inr-trade-matcher/internal/types"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ext = ".jsonl"

var ist = time.FixedZone("IST", 19800)

type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Log {
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyPath(t time.Time) string {
	return filepath.Join(l.dir, t.In(ist).Format("2006-01-02")+ext)
}

// Record appends one line per match and per skipped item, tagged with runID.
func (l *Log) Record(runID string, res *types.MatchResult) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.dailyPath(l.now())
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.InfoLevel)
	zl := zap.New(core).With(
		zap.String("run_id", runID),
		zap.String("strategy", res.Strategy.String()),
	)

	for _, key := range keys(res.Summaries) {
		for _, s := range res.Summaries[key] {
			if len(s.Matches) == 0 {
				zl.Info("summary",
					zap.String("date", s.DateKey),
					zap.String("asset", s.Asset),
					zap.Stringer("inr_price", s.InrPrice),
					zap.Stringer("usdt_price", s.UsdtPrice),
					zap.Stringer("quantity", s.CoinSoldQty),
					zap.Stringer("tds", s.TDS),
				)
				continue
			}
			for _, m := range s.Matches {
				zl.Info("match",
					zap.String("date", s.DateKey),
					zap.String("asset", m.Asset),
					zap.Int("sell_row", m.SellRow),
					zap.Int("lot_id", m.LotID),
					zap.Time("purchase_time", m.PurchaseTime),
					zap.Stringer("quantity", m.MatchedQuantity),
					zap.Stringer("sell_price", m.SellPrice),
					zap.Stringer("cost_basis", m.CostBasis),
					zap.Stringer("profit_loss", m.ProfitLoss),
					zap.Stringer("tds", m.TDS),
				)
			}
		}
	}
	for _, key := range keys(res.Skipped) {
		for _, s := range res.Skipped[key] {
			zl.Warn("skipped",
				zap.String("date", s.DateKey),
				zap.String("asset", s.Asset),
				zap.Stringer("buy_qty", s.BuyQuantity),
				zap.Stringer("sell_qty", s.SellQuantity),
				zap.String("reason", s.Reason),
			)
		}
	}
	if err := zl.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// CompressOlder gzips daily files last modified before the retention window
// and removes the originals.
func (l *Log) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ext {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// Already compressed by an earlier pass.
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func keys(m types.SummaryMap) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
