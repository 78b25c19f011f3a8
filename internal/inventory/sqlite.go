package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// noTime marks lots without a purchase timestamp; it sorts before every real one.
const noTime = math.MinInt64

// Purchase times are split into Unix seconds and the nanosecond remainder so
// every representable date keeps its order.
const schema = `
CREATE TABLE lots (
	asset       TEXT    NOT NULL,
	id          INTEGER NOT NULL,
	symbol      TEXT    NOT NULL,
	cost_price  TEXT    NOT NULL,
	original    TEXT    NOT NULL,
	remaining   TEXT    NOT NULL,
	purchase_s  INTEGER NOT NULL,
	purchase_ns INTEGER NOT NULL,
	tds         TEXT    NOT NULL,
	total_cost  TEXT    NOT NULL,
	exhausted   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (asset, id)
);
CREATE INDEX idx_lots_purchase ON lots (asset, exhausted, purchase_s, purchase_ns, id);
`

const lotColumns = `id, asset, symbol, cost_price, original, remaining, purchase_s, purchase_ns, tds, total_cost`

// SQLite keeps lots in a scratch database so very large buy books do not have
// to live in memory. Matching semantics are the same as Memory.
//
// Every store owns its own database file, so concurrent passes sharing one
// configured path never see each other's lots.
type SQLite struct {
	db     *sql.DB
	path   string
	nextID map[string]int
}

var _ interfaces.BuyInventoryStore = (*SQLite)(nil)

// NewSQLite creates a fresh scratch database next to path, named after it
// (lots.db becomes lots-<random>.db). An empty path uses the system temp
// directory. The file is removed on Close.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	dir, pattern := "", "lots-*.db"
	if path != "" {
		dir = filepath.Dir(path)
		base := filepath.Base(path)
		ext := filepath.Ext(base)
		pattern = strings.TrimSuffix(base, ext) + "-*" + ext
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create inventory dir %s: %w", dir, err)
		}
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch db: %w", err)
	}
	path = f.Name()
	_ = f.Close()

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(OFF)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		removeDB(path)
		return nil, fmt.Errorf("open inventory db %s: %w", path, err)
	}
	// Single connection; the store has one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		removeDB(path)
		return nil, fmt.Errorf("init inventory schema: %w", err)
	}
	logger.Debug(ctx, "SQLite inventory opened", "path", path)

	return &SQLite{db: db, path: path, nextID: map[string]int{}}, nil
}

// Path is the scratch database backing this store.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) AddLot(ctx context.Context, lot types.FIFOLot) (types.FIFOLot, error) {
	lot.ID = s.nextID[lot.Asset]
	sec, nsec := encodeTime(lot.PurchaseTime)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lots (`+lotColumns+`, exhausted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lot.ID, lot.Asset, lot.Symbol,
		lot.CostPrice.String(), lot.OriginalQuantity.String(), lot.RemainingQuantity.String(),
		sec, nsec, lot.TDS.String(), lot.TotalCost.String(),
		boolInt(lot.Exhausted()),
	)
	if err != nil {
		return types.FIFOLot{}, fmt.Errorf("insert lot %s/%d: %w", lot.Asset, lot.ID, err)
	}
	s.nextID[lot.Asset]++
	return lot, nil
}

func (s *SQLite) Head(ctx context.Context, asset string) (types.FIFOLot, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE asset = ? AND exhausted = 0 ORDER BY id LIMIT 1`, asset)
	lot, err := scanLot(row)
	if err == sql.ErrNoRows {
		return types.FIFOLot{}, false, nil
	}
	if err != nil {
		return types.FIFOLot{}, false, fmt.Errorf("head lot %s: %w", asset, err)
	}
	return lot, true, nil
}

func (s *SQLite) Eligible(ctx context.Context, asset string, asOf time.Time) ([]types.FIFOLot, error) {
	sec, nsec := encodeTime(asOf)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM lots
		 WHERE asset = ? AND exhausted = 0
		   AND (purchase_s < ? OR (purchase_s = ? AND purchase_ns <= ?))
		 ORDER BY purchase_s, purchase_ns, id`, asset, sec, sec, nsec)
	if err != nil {
		return nil, fmt.Errorf("eligible lots %s: %w", asset, err)
	}
	return collect(rows)
}

func (s *SQLite) Consume(ctx context.Context, asset string, lotID int, qty decimal.Decimal) (types.FIFOLot, decimal.Decimal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE asset = ? AND id = ?`, asset, lotID)
	lot, err := scanLot(row)
	if err != nil {
		return types.FIFOLot{}, decimal.Zero, fmt.Errorf("lot %s/%d not found: %w", asset, lotID, err)
	}

	taken := decimal.Min(qty, lot.RemainingQuantity)
	if taken.IsNegative() {
		taken = decimal.Zero
	}
	lot.RemainingQuantity = lot.RemainingQuantity.Sub(taken)
	if lot.RemainingQuantity.IsNegative() {
		lot.RemainingQuantity = decimal.Zero
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE lots SET remaining = ?, exhausted = ? WHERE asset = ? AND id = ?`,
		lot.RemainingQuantity.String(), boolInt(lot.Exhausted()), asset, lotID)
	if err != nil {
		return types.FIFOLot{}, decimal.Zero, fmt.Errorf("update lot %s/%d: %w", asset, lotID, err)
	}
	return lot, taken, nil
}

func (s *SQLite) Lots(ctx context.Context, asset string) ([]types.FIFOLot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE asset = ? ORDER BY id`, asset)
	if err != nil {
		return nil, fmt.Errorf("list lots %s: %w", asset, err)
	}
	return collect(rows)
}

func (s *SQLite) Close() error {
	err := s.db.Close()
	removeDB(s.path)
	return err
}

func removeDB(path string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLot(sc scanner) (types.FIFOLot, error) {
	var (
		lot                                       types.FIFOLot
		cost, original, remaining, tds, totalCost string
		purchaseS, purchaseNs                     int64
	)
	if err := sc.Scan(&lot.ID, &lot.Asset, &lot.Symbol, &cost, &original, &remaining, &purchaseS, &purchaseNs, &tds, &totalCost); err != nil {
		return types.FIFOLot{}, err
	}
	var err error
	if lot.CostPrice, err = decimal.NewFromString(cost); err != nil {
		return types.FIFOLot{}, err
	}
	if lot.OriginalQuantity, err = decimal.NewFromString(original); err != nil {
		return types.FIFOLot{}, err
	}
	if lot.RemainingQuantity, err = decimal.NewFromString(remaining); err != nil {
		return types.FIFOLot{}, err
	}
	if lot.TDS, err = decimal.NewFromString(tds); err != nil {
		return types.FIFOLot{}, err
	}
	if lot.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return types.FIFOLot{}, err
	}
	lot.PurchaseTime = decodeTime(purchaseS, purchaseNs)
	return lot, nil
}

func collect(rows *sql.Rows) ([]types.FIFOLot, error) {
	defer rows.Close()
	var out []types.FIFOLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lot)
	}
	return out, rows.Err()
}

func encodeTime(t time.Time) (sec, nsec int64) {
	if t.IsZero() {
		return noTime, 0
	}
	return t.Unix(), int64(t.Nanosecond())
}

func decodeTime(sec, nsec int64) time.Time {
	if sec == noTime {
		return time.Time{}
	}
	return time.Unix(sec, nsec).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
