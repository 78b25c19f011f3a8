package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inr-trade-matcher/internal/assets"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/normalize"
	"inr-trade-matcher/internal/pnl"
	"inr-trade-matcher/internal/service"
	"inr-trade-matcher/internal/store"
)

const trades = `Pair,Side,Price,Quantity,Date
BTCINR,BUY,100,10,2024-03-01
BTCUSDT,SELL,1,10,2024-03-02
`

func newTestServer(t *testing.T, mutate func(*store.Config)) *httptest.Server {
	t.Helper()
	cfg := store.Default()
	if mutate != nil {
		mutate(cfg)
	}
	svc := service.New(
		matcher.New(matcher.DefaultOptions()),
		pnl.New(pnl.Options{}),
		normalize.New(assets.NewStablecoins(cfg.Stablecoins)),
		nil, nil,
	)
	h, err := NewRouter(svc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestMatchRawBodyJSON(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/api/match?strategy=fifo&name=trades.csv", "text/csv", strings.NewReader(trades))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		RunID  string `json:"run_id"`
		Result struct {
			Summaries map[string][]struct {
				Asset   string `json:"asset"`
				Matches []struct {
					ProfitLoss string `json:"profit_loss"`
				} `json:"matches"`
			} `json:"summaries"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	rows := body.Result.Summaries["2024-03-02"]
	if len(rows) != 1 || len(rows[0].Matches) != 1 {
		t.Fatalf("unexpected summaries %+v", body.Result.Summaries)
	}
	if rows[0].Matches[0].ProfitLoss != "-990" {
		t.Errorf("expected -990, got %s", rows[0].Matches[0].ProfitLoss)
	}
}

func TestMatchMultipartCSV(t *testing.T) {
	srv := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "trades.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(trades))
	_ = mw.Close()

	resp, err := http.Post(srv.URL+"/api/match?strategy=daily&format=csv", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	if !strings.HasPrefix(out.String(), "Date,Asset,INR Price") || !strings.Contains(out.String(), "Total") {
		t.Errorf("unexpected csv body:\n%s", out.String())
	}
}

func TestMatchErrors(t *testing.T) {
	srv := newTestServer(t, func(c *store.Config) { c.Server.MaxUploadBytes = 64 })

	tests := []struct {
		name   string
		query  string
		body   string
		status int
	}{
		{"bad strategy", "?strategy=lifo", trades[:40], http.StatusBadRequest},
		{"unparseable", "", "", http.StatusBadRequest},
		{"no matches", "", "Pair,Side,Price,Quantity\nETHINR,BUY,1,1\n", http.StatusUnprocessableEntity},
		{"too large", "", trades, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/match"+tt.query, "text/csv", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(c *store.Config) {
		c.Server.RatePerSecond = 0.001
		c.Server.RateBurst = 1
	})

	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/match", "text/csv", strings.NewReader(trades))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusTooManyRequests {
		t.Errorf("expected [200 429], got %v", statuses)
	}
}

func TestPnL(t *testing.T) {
	srv := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range map[string]string{
		"buy":  trades,
		"sell": "Pair,Side,Price,Quantity,Date\nBTCINR,BUY,150,1,2024-03-03\nBTCUSDT,SELL,2,1,2024-03-04\n",
	} {
		fw, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()

	resp, err := http.Post(srv.URL+"/api/pnl?strategy=fifo", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Report struct {
			Matches []json.RawMessage `json:"matches"`
		} `json:"report"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Report.Matches) != 1 {
		t.Errorf("expected 1 P&L match, got %d", len(body.Report.Matches))
	}
}
