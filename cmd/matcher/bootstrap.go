package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/store"

	"github.com/joho/godotenv"
)

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig reads the config file, falling back to defaults when it does not
// exist.
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info(ctx, "Config file not found, using defaults", "path", path)
		return store.Default(), nil
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values with the flags that were set explicitly.
func applyFlags(cfg *store.Config, f *flags) error {
	if f.buyWindow != "" {
		cfg.BuyWindow = f.buyWindow
	}
	if f.inventory != "" {
		cfg.Inventory.Backend = f.inventory
	}
	if f.trackSkipped {
		cfg.TrackSkipped = true
	}
	if f.sellPrice != "" {
		cfg.PnL.SellPrice = f.sellPrice
	}
	if f.precision != 0 {
		cfg.Report.Precision = f.precision
	}
	if f.strategy != "" {
		cfg.Strategy = f.strategy
	}
	return cfg.Validate()
}

// checkRemoteFlags rejects flags that only shape a local matching pass. The
// server applies its own config for those.
func checkRemoteFlags(f *flags) error {
	var set []string
	if f.buyWindow != "" {
		set = append(set, "-buy-window")
	}
	if f.trackSkipped {
		set = append(set, "-track-skipped")
	}
	if f.inventory != "" {
		set = append(set, "-inventory")
	}
	if f.sellPrice != "" {
		set = append(set, "-sell-price")
	}
	if len(set) > 0 {
		return fmt.Errorf("%s cannot be used with -server; the server's config applies", strings.Join(set, ", "))
	}
	return nil
}

func isRemote(input string) bool {
	s := strings.ToLower(input)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://")
}

// filePrefix derives output file names from the input name.
func filePrefix(input string) string {
	base := filepath.Base(input)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "trades"
	}
	return base
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
