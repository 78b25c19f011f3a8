// Package inventory implements BuyInventoryStore in memory and on SQLite.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

type queue struct {
	lots []types.FIFOLot
	// head is the first lot that may still have quantity; lots before it are
	// exhausted.
	head int
}

// Memory keeps lots in append-only slices with a head pointer per asset.
type Memory struct {
	queues map[string]*queue
}

var _ interfaces.BuyInventoryStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{queues: make(map[string]*queue)}
}

func (m *Memory) AddLot(_ context.Context, lot types.FIFOLot) (types.FIFOLot, error) {
	q := m.queues[lot.Asset]
	if q == nil {
		q = &queue{}
		m.queues[lot.Asset] = q
	}
	lot.ID = len(q.lots)
	q.lots = append(q.lots, lot)
	q.advance()
	return lot, nil
}

func (m *Memory) Head(_ context.Context, asset string) (types.FIFOLot, bool, error) {
	q := m.queues[asset]
	if q == nil {
		return types.FIFOLot{}, false, nil
	}
	q.advance()
	if q.head >= len(q.lots) {
		return types.FIFOLot{}, false, nil
	}
	return q.lots[q.head], true, nil
}

func (m *Memory) Eligible(_ context.Context, asset string, asOf time.Time) ([]types.FIFOLot, error) {
	q := m.queues[asset]
	if q == nil {
		return nil, nil
	}
	var out []types.FIFOLot
	for _, l := range q.lots[q.head:] {
		if l.Exhausted() || l.PurchaseTime.After(asOf) {
			continue
		}
		out = append(out, l)
	}
	sortByPurchase(out)
	return out, nil
}

func (m *Memory) Consume(_ context.Context, asset string, lotID int, qty decimal.Decimal) (types.FIFOLot, decimal.Decimal, error) {
	q := m.queues[asset]
	if q == nil || lotID < 0 || lotID >= len(q.lots) {
		return types.FIFOLot{}, decimal.Zero, fmt.Errorf("lot %s/%d not found", asset, lotID)
	}
	lot := &q.lots[lotID]
	taken := decimal.Min(qty, lot.RemainingQuantity)
	if taken.IsNegative() {
		taken = decimal.Zero
	}
	lot.RemainingQuantity = lot.RemainingQuantity.Sub(taken)
	if lot.RemainingQuantity.IsNegative() {
		lot.RemainingQuantity = decimal.Zero
	}
	q.advance()
	return *lot, taken, nil
}

func (m *Memory) Lots(_ context.Context, asset string) ([]types.FIFOLot, error) {
	q := m.queues[asset]
	if q == nil {
		return nil, nil
	}
	return append([]types.FIFOLot(nil), q.lots...), nil
}

func (m *Memory) Close() error {
	m.queues = make(map[string]*queue)
	return nil
}

func (q *queue) advance() {
	for q.head < len(q.lots) && q.lots[q.head].Exhausted() {
		q.head++
	}
}

func sortByPurchase(lots []types.FIFOLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].PurchaseTime.Equal(lots[j].PurchaseTime) {
			return lots[i].PurchaseTime.Before(lots[j].PurchaseTime)
		}
		return lots[i].ID < lots[j].ID
	})
}
