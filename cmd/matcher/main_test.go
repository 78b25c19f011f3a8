package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/httpapi"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/normalize"
	"inr-trade-matcher/internal/pnl"
	"inr-trade-matcher/internal/report"
	"inr-trade-matcher/internal/service"
	"inr-trade-matcher/internal/store"
	"inr-trade-matcher/internal/types"
)

func TestFilePrefix(t *testing.T) {
	tests := map[string]string{
		"exports/trades-2024.csv":                "trades-2024",
		"https://example.com/statement.html?x=1": "statement",
		"-":                                      "-",
		"":                                       "trades",
		"file:///var/data/history.htm#table":     "history",
	}
	for in, want := range tests {
		if got := filePrefix(in); got != want {
			t.Errorf("filePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsRemote(t *testing.T) {
	for in, want := range map[string]bool{
		"HTTPS://x/y.html": true,
		"file:///tmp/a":    true,
		"trades.csv":       false,
		"-":                false,
	} {
		if got := isRemote(in); got != want {
			t.Errorf("isRemote(%q) = %v", in, got)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := store.Default()
	err := applyFlags(cfg, &flags{strategy: "daily", buyWindow: "sameDay", trackSkipped: true, precision: 4})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Strategy != "daily" || cfg.BuyWindow != "sameDay" || !cfg.TrackSkipped || cfg.Report.Precision != 4 {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := applyFlags(store.Default(), &flags{inventory: "redis"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Strategy != "fifo" {
		t.Errorf("strategy = %q", cfg.Strategy)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("strategy: lifo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestCheckRemoteFlags(t *testing.T) {
	tests := []struct {
		name    string
		f       flags
		wantErr string
	}{
		{"plain", flags{strategy: "fifo", precision: 4, format: "csv"}, ""},
		{"buy window", flags{buyWindow: "sameDay"}, "-buy-window"},
		{"several", flags{trackSkipped: true, inventory: "sqlite", sellPrice: "inr"}, "-track-skipped, -inventory, -sell-price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRemoteFlags(&tt.f)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestRunRemoteNothingMatched(t *testing.T) {
	cfg := store.Default()
	svc := service.New(
		matcher.New(matcher.DefaultOptions()),
		pnl.New(pnl.Options{}),
		normalize.New(assets.NewStablecoins(cfg.Stablecoins)),
		nil, nil,
	)
	h, err := httpapi.NewRouter(svc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "buys.csv")
	if err := os.WriteFile(in, []byte("Pair,Side,Price,Quantity,Date\nBTCINR,BUY,100,10,2024-03-01\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("json", func(t *testing.T) {
		out := filepath.Join(dir, "out.json")
		err := runRemote(context.Background(), cfg, &flags{input: in, server: srv.URL, output: out}, types.StrategyFIFO, report.FormatJSON)
		if !errors.Is(err, matcher.ErrNoMatches) {
			t.Fatalf("expected ErrNoMatches, got %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("result not written: %v", err)
		}
		var res service.Result
		if err := json.Unmarshal(data, &res); err != nil {
			t.Fatal(err)
		}
		if res.RunID == "" || res.File != "buys.csv" || res.Match == nil {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("csv", func(t *testing.T) {
		out := filepath.Join(dir, "csv")
		err := runRemote(context.Background(), cfg, &flags{input: in, server: srv.URL, output: out}, types.StrategyFIFO, report.FormatCSV)
		if !errors.Is(err, matcher.ErrNoMatches) {
			t.Fatalf("expected ErrNoMatches, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(out, "buys_fifo_summary.csv")); err != nil {
			t.Errorf("summary not written: %v", err)
		}
	})
}
