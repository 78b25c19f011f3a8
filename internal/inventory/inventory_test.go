package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 10, 0, 0, 0, time.UTC)
}

func lot(asset string, price, qty int64, at time.Time) types.FIFOLot {
	q := decimal.NewFromInt(qty)
	return types.FIFOLot{
		Asset:             asset,
		Symbol:            asset + "INR",
		CostPrice:         decimal.NewFromInt(price),
		OriginalQuantity:  q,
		RemainingQuantity: q,
		PurchaseTime:      at,
	}
}

func stores(t *testing.T) map[string]interfaces.BuyInventoryStore {
	t.Helper()
	sq, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "lots.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]interfaces.BuyInventoryStore{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreHeadAdvancesOnExhaustion(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := s.AddLot(ctx, lot("BTC", 100, 10, day(1)))
			if err != nil {
				t.Fatal(err)
			}
			second, err := s.AddLot(ctx, lot("BTC", 110, 5, day(2)))
			if err != nil {
				t.Fatal(err)
			}
			if first.ID != 0 || second.ID != 1 {
				t.Fatalf("expected ids 0,1 got %d,%d", first.ID, second.ID)
			}

			head, ok, err := s.Head(ctx, "BTC")
			if err != nil || !ok || head.ID != 0 {
				t.Fatalf("expected head lot 0, got %+v ok=%v err=%v", head, ok, err)
			}

			updated, taken, err := s.Consume(ctx, "BTC", 0, decimal.NewFromInt(10))
			if err != nil {
				t.Fatal(err)
			}
			if !taken.Equal(decimal.NewFromInt(10)) || !updated.Exhausted() {
				t.Errorf("expected lot 0 fully consumed, taken=%s remaining=%s", taken, updated.RemainingQuantity)
			}

			head, ok, err = s.Head(ctx, "BTC")
			if err != nil || !ok || head.ID != 1 {
				t.Fatalf("expected head lot 1, got %+v ok=%v err=%v", head, ok, err)
			}
			if !head.CostPrice.Equal(decimal.NewFromInt(110)) {
				t.Errorf("expected cost 110, got %s", head.CostPrice)
			}
		})
	}
}

func TestStoreConsumeFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.AddLot(ctx, lot("ETH", 50, 3, day(1))); err != nil {
				t.Fatal(err)
			}
			updated, taken, err := s.Consume(ctx, "ETH", 0, decimal.NewFromInt(7))
			if err != nil {
				t.Fatal(err)
			}
			if !taken.Equal(decimal.NewFromInt(3)) {
				t.Errorf("expected 3 taken, got %s", taken)
			}
			if !updated.RemainingQuantity.IsZero() {
				t.Errorf("expected remaining 0, got %s", updated.RemainingQuantity)
			}
			if _, ok, _ := s.Head(ctx, "ETH"); ok {
				t.Error("expected no head after exhaustion")
			}
			lots, err := s.Lots(ctx, "ETH")
			if err != nil || len(lots) != 1 {
				t.Fatalf("exhausted lots must stay in the store, got %d err=%v", len(lots), err)
			}
		})
	}
}

func TestStoreEligibleOrdersByPurchaseTime(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// Inserted out of time order.
			for _, l := range []types.FIFOLot{
				lot("SOL", 30, 1, day(5)),
				lot("SOL", 10, 1, day(1)),
				lot("SOL", 20, 1, day(3)),
			} {
				if _, err := s.AddLot(ctx, l); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.Eligible(ctx, "SOL", day(4))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 eligible lots, got %d", len(got))
			}
			if got[0].ID != 1 || got[1].ID != 2 {
				t.Errorf("expected ids [1 2], got [%d %d]", got[0].ID, got[1].ID)
			}

			none, err := s.Eligible(ctx, "SOL", day(0))
			if err != nil {
				t.Fatal(err)
			}
			if len(none) != 0 {
				t.Errorf("expected no lots before day 1, got %d", len(none))
			}
		})
	}
}

func TestStoreAssetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.AddLot(ctx, lot("BTC", 1, 1, day(1))); err != nil {
				t.Fatal(err)
			}
			eth, err := s.AddLot(ctx, lot("ETH", 1, 1, day(1)))
			if err != nil {
				t.Fatal(err)
			}
			if eth.ID != 0 {
				t.Errorf("expected per-asset ids, got %d", eth.ID)
			}
			if _, _, err := s.Consume(ctx, "DOGE", 0, decimal.NewFromInt(1)); err == nil {
				t.Error("expected error consuming unknown lot")
			}
		})
	}
}

func TestNewFactory(t *testing.T) {
	ctx := context.Background()

	f, err := NewFactory(BackendAuto, filepath.Join(t.TempDir(), "spill.db"), 2)
	if err != nil {
		t.Fatal(err)
	}
	small, err := f(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := small.(*Memory); !ok {
		t.Errorf("expected memory store below threshold, got %T", small)
	}
	_ = small.Close()

	big, err := f(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := big.(*SQLite); !ok {
		t.Errorf("expected sqlite store above threshold, got %T", big)
	}
	_ = big.Close()

	if _, err := NewFactory("redis", "", 0); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestStoreEligibleBeyondNanosecondRange(t *testing.T) {
	ctx := context.Background()
	far := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, l := range []types.FIFOLot{
				lot("ETH", 100, 1, far),
				lot("ETH", 200, 1, day(2)),
				lot("ETH", 300, 1, time.Time{}),
			} {
				if _, err := s.AddLot(ctx, l); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.Eligible(ctx, "ETH", day(5))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
				t.Fatalf("expected ids [2 1], got %+v", got)
			}

			all, err := s.Lots(ctx, "ETH")
			if err != nil {
				t.Fatal(err)
			}
			if !all[0].PurchaseTime.Equal(far) {
				t.Errorf("purchase time = %v, want %v", all[0].PurchaseTime, far)
			}
			if !all[2].PurchaseTime.IsZero() {
				t.Errorf("zero purchase time came back as %v", all[2].PurchaseTime)
			}

			later, err := s.Eligible(ctx, "ETH", far.Add(time.Nanosecond))
			if err != nil {
				t.Fatal(err)
			}
			if len(later) != 3 || later[2].ID != 0 {
				t.Errorf("expected the 2300 lot last, got %+v", later)
			}
		})
	}
}

func TestSQLiteStoresSharingAPathAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lots.db")

	a, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Path() == b.Path() {
		t.Fatalf("stores share %s", a.Path())
	}
	if filepath.Dir(a.Path()) != filepath.Dir(path) {
		t.Errorf("scratch db %s not next to %s", a.Path(), path)
	}

	if _, err := a.AddLot(ctx, lot("BTC", 10, 5, day(1))); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := b.Head(ctx, "BTC"); err != nil || ok {
		t.Errorf("second store sees first store's lot (ok=%v, err=%v)", ok, err)
	}
	if l, err := b.AddLot(ctx, lot("BTC", 20, 1, day(2))); err != nil || l.ID != 0 {
		t.Errorf("second store lot = %+v, err %v", l, err)
	}

	_ = b.Close()
	head, ok, err := a.Head(ctx, "BTC")
	if err != nil || !ok || !head.RemainingQuantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("first store lost its lot after the second closed: %+v ok=%v err=%v", head, ok, err)
	}

	pathA := a.Path()
	_ = a.Close()
	if _, err := os.Stat(pathA); !os.IsNotExist(err) {
		t.Errorf("scratch db %s left behind", pathA)
	}
}
