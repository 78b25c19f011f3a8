package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/httpapi"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/normalize"
	"inr-trade-matcher/internal/pnl"
	"inr-trade-matcher/internal/service"
	"inr-trade-matcher/internal/store"
	"inr-trade-matcher/internal/types"
)

const trades = "Pair,Side,Price,Quantity,Date\nBTCINR,BUY,100,10,2024-03-01\nBTCUSDT,SELL,1,10,2024-03-02\n"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
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
	t.Cleanup(srv.Close)
	return srv
}

func TestClientMatch(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, WithTimeout(5*time.Second))

	if err := c.WaitHealthy(context.Background(), nil); err != nil {
		t.Fatalf("server not healthy: %v", err)
	}

	out, _, err := c.Match(context.Background(), "trades.csv", []byte(trades), types.StrategyFIFO, "")
	if err != nil {
		t.Fatal(err)
	}
	if out.RunID == "" || out.File != "trades.csv" {
		t.Errorf("unexpected response %+v", out)
	}
	if out.Result.Summaries.Count() != 1 {
		t.Errorf("expected 1 summary, got %d", out.Result.Summaries.Count())
	}

	_, raw, err := c.Match(context.Background(), "trades.csv", []byte(trades), types.StrategyFIFO, "csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw.Body), "Date,Asset") {
		t.Errorf("expected CSV body, got %s", raw.Body)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL)

	_, _, err := c.Match(context.Background(), "empty.csv", nil, types.StrategyFIFO, "")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", se.StatusCode)
	}
	if !strings.Contains(se.Message, "failed to parse trade file") {
		t.Errorf("expected server error message, got %q", se.Message)
	}
}

func TestClientPnL(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL)

	sell := "Pair,Side,Price,Quantity,Date\nBTCINR,BUY,150,1,2024-03-03\nBTCUSDT,SELL,2,1,2024-03-04\n"
	resp, err := c.PnL(context.Background(), "buy.csv", []byte(trades), "sell.csv", []byte(sell), types.StrategyFIFO, "csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(resp.Body), "TOTAL") {
		t.Errorf("expected P&L csv, got %s", resp.Body)
	}
}

func TestWaitHealthyGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).WaitHealthy(context.Background(), &RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond})
	if err == nil {
		t.Fatal("expected failure")
	}
}

func TestClientMatchNothingMatched(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL)
	buysOnly := "Pair,Side,Price,Quantity,Date\nBTCINR,BUY,100,10,2024-03-01\n"

	for _, format := range []string{"", "json", "csv"} {
		t.Run("format="+format, func(t *testing.T) {
			out, resp, err := c.Match(context.Background(), "buys.csv", []byte(buysOnly), types.StrategyFIFO, format)
			if !errors.Is(err, matcher.ErrNoMatches) {
				t.Fatalf("expected ErrNoMatches, got %v", err)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("expected a 422 StatusError, got %v", err)
			}
			if resp == nil || resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("response = %+v", resp)
			}
			if out == nil || out.Result == nil {
				t.Fatalf("expected the result alongside the error, got %+v", out)
			}
			if out.RunID == "" || out.File != "buys.csv" || out.Result.Summaries.Count() != 0 {
				t.Errorf("unexpected response %+v", out)
			}
		})
	}
}

func TestClientPnLNothingMatched(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL)

	buysOnly := "Pair,Side,Price,Quantity,Date\nBTCINR,BUY,100,10,2024-03-01\n"
	_, err := c.PnL(context.Background(), "buy.csv", []byte(buysOnly), "sell.csv", []byte(trades), types.StrategyFIFO, "")
	if !errors.Is(err, matcher.ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches, got %v", err)
	}
}

func TestStatusErrorUnwrap(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusUnprocessableEntity: true,
		http.StatusBadRequest:          false,
		http.StatusInternalServerError: false,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"failed"}`))
		}))
		_, err := NewClient(srv.URL).PnL(context.Background(), "a.csv", nil, "b.csv", nil, types.StrategyFIFO, "")
		srv.Close()
		if got := errors.Is(err, matcher.ErrNoMatches); got != want {
			t.Errorf("status %d: errors.Is(ErrNoMatches) = %v, want %v", code, got, want)
		}
	}
}
