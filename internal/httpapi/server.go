// Package httpapi exposes matching and P&L reconciliation over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/report"
	"inr-trade-matcher/internal/service"
	"inr-trade-matcher/internal/store"
	"inr-trade-matcher/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type Handler struct {
	svc       *service.Service
	strategy  types.Strategy
	precision int
	maxUpload int64
}

// NewRouter builds the HTTP routes for svc.
func NewRouter(svc *service.Service, cfg *store.Config) (http.Handler, error) {
	strategy, err := types.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		svc:       svc,
		strategy:  strategy,
		precision: cfg.Report.Precision,
		maxUpload: cfg.Server.MaxUploadBytes,
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(limiter))
		r.Use(maxBody(h.maxUpload))
		r.Post("/match", h.handleMatch)
		r.Post("/pnl", h.handlePnL)
	})
	return r, nil
}

// handleMatch accepts a multipart "file" field or a raw body named by the
// "name" query parameter.
func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	strategy, ok := h.strategyParam(w, r)
	if !ok {
		return
	}

	name, data, err := h.readUpload(r, "file")
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	res, err := h.svc.Process(ctx, name, data, strategy)
	if err != nil {
		h.serviceError(w, r, err, res)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, res)
		return
	}

	rw := report.New(h.precision)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s_%s.csv", strategy, viewParam(r))))
	var werr error
	switch viewParam(r) {
	case "matches":
		werr = rw.WriteMatches(w, res.Match)
	case "skipped":
		werr = rw.WriteSkipped(w, res.Match)
	default:
		werr = rw.WriteSummaries(w, res.Match)
	}
	if werr != nil {
		logger.ErrorWithErr(ctx, "Failed to write CSV response", werr, "request_id", RequestIDFrom(ctx))
	}
}

// handlePnL expects multipart fields "buy" and "sell".
func (h *Handler) handlePnL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	strategy, ok := h.strategyParam(w, r)
	if !ok {
		return
	}
	if !isMultipart(r) {
		writeError(w, http.StatusBadRequest, "multipart form with 'buy' and 'sell' files required")
		return
	}

	buyName, buyData, err := h.readUpload(r, "buy")
	if err != nil {
		h.uploadError(w, r, err)
		return
	}
	sellName, sellData, err := h.readUpload(r, "sell")
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	rec, err := h.svc.Reconcile(ctx, buyName, buyData, sellName, sellData, strategy)
	if err != nil {
		h.serviceError(w, r, err, nil)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="pnl.csv"`)
	if err := report.New(h.precision).WritePnL(w, rec.Report); err != nil {
		logger.ErrorWithErr(ctx, "Failed to write CSV response", err, "request_id", RequestIDFrom(ctx))
	}
}

func (h *Handler) strategyParam(w http.ResponseWriter, r *http.Request) (types.Strategy, bool) {
	name := r.URL.Query().Get("strategy")
	if name == "" {
		return h.strategy, true
	}
	s, err := types.ParseStrategy(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return s, true
}

func viewParam(r *http.Request) string {
	switch v := r.URL.Query().Get("view"); v {
	case "matches", "skipped":
		return v
	}
	return "summary"
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

func (h *Handler) readUpload(r *http.Request, field string) (string, []byte, error) {
	if !isMultipart(r) {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload.csv"
		}
		data, err := io.ReadAll(r.Body)
		return name, data, err
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return "", nil, err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	return header.Filename, data, err
}

func (h *Handler) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		return
	}
	logger.Warn(r.Context(), "Bad upload", "error", err, "request_id", RequestIDFrom(r.Context()))
	writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error, res *service.Result) {
	ctx := r.Context()
	switch {
	case errors.Is(err, service.ErrParsingFailed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, matcher.ErrNoMatches):
		body := map[string]any{"error": err.Error()}
		if res != nil {
			body["result"] = res
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		logger.ErrorWithErr(ctx, "Request failed", err, "request_id", RequestIDFrom(ctx))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
