package interfaces

import (
	"context"
	"time"

	"inr-trade-matcher/internal/types"

	"github.com/shopspring/decimal"
)

type Matcher interface {
	Match(ctx context.Context, txs []types.Transaction, strategy types.Strategy) (*types.MatchResult, error)
}

// BuyInventoryStore holds FIFO buy lots per asset. Lots keep the order they
// were added in; IDs are assigned per asset starting at 0.
type BuyInventoryStore interface {
	// AddLot appends a lot and returns it with its assigned ID.
	AddLot(ctx context.Context, lot types.FIFOLot) (types.FIFOLot, error)

	// Head returns the oldest lot with remaining quantity.
	Head(ctx context.Context, asset string) (types.FIFOLot, bool, error)

	// Eligible returns the lots with remaining quantity purchased at or before
	// asOf, ordered by purchase time then ID.
	Eligible(ctx context.Context, asset string, asOf time.Time) ([]types.FIFOLot, error)

	// Consume takes up to qty from a lot and returns the updated lot and the
	// quantity actually taken.
	Consume(ctx context.Context, asset string, lotID int, qty decimal.Decimal) (types.FIFOLot, decimal.Decimal, error)

	// Lots returns every lot of the asset, exhausted ones included.
	Lots(ctx context.Context, asset string) ([]types.FIFOLot, error)

	Close() error
}
