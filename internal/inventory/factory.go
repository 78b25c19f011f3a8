package inventory

import (
	"context"
	"fmt"

	"inr-trade-matcher/internal/interfaces"
	"inr-trade-matcher/internal/logger"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	// BackendAuto uses memory until the buy count exceeds the spill threshold.
	BackendAuto = "auto"
)

// Factory opens a fresh store for one matching pass. buyCount is the number of
// buy lots the pass is about to load.
type Factory func(ctx context.Context, buyCount int) (interfaces.BuyInventoryStore, error)

// MemoryFactory always returns an in-memory store.
func MemoryFactory() Factory {
	return func(context.Context, int) (interfaces.BuyInventoryStore, error) {
		return NewMemory(), nil
	}
}

// NewFactory builds a Factory for the configured backend.
func NewFactory(backend, sqlitePath string, spillThreshold int) (Factory, error) {
	switch backend {
	case "", BackendMemory:
		return MemoryFactory(), nil
	case BackendSQLite:
		return func(ctx context.Context, _ int) (interfaces.BuyInventoryStore, error) {
			return NewSQLite(ctx, sqlitePath)
		}, nil
	case BackendAuto:
		return func(ctx context.Context, buyCount int) (interfaces.BuyInventoryStore, error) {
			if spillThreshold > 0 && buyCount > spillThreshold {
				logger.Info(ctx, "Buy inventory spilling to SQLite", "buys", buyCount, "threshold", spillThreshold)
				return NewSQLite(ctx, sqlitePath)
			}
			return NewMemory(), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown inventory backend %q", backend)
}
