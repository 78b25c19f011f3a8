// Package api is a client for a remote matchd server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/matcher"
	"inr-trade-matcher/internal/types"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	useLogging bool
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		baseURL: baseURL,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Response is a completed request. Error statuses are returned as *StatusError.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (r *Response) ParseJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// StatusError carries a non-2xx reply. A 422 reply unwraps to
// matcher.ErrNoMatches.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*Response, error) {
	full := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, method, full, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	c.logDebug(ctx, "HTTP Request", "method", method, "url", full, "bytes", len(body))
	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logDebug(ctx, "HTTP Response",
		"url", full,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bodySize", len(respBody))

	if httpResp.StatusCode >= 400 {
		msg := string(respBody)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		c.logWarn(ctx, "HTTP error response", "url", full, "status", httpResp.StatusCode, "error", msg)
		se := &StatusError{StatusCode: httpResp.StatusCode, Message: msg}
		if httpResp.StatusCode == http.StatusUnprocessableEntity {
			se.Err = matcher.ErrNoMatches
		}
		return &Response{StatusCode: httpResp.StatusCode, Body: respBody, Headers: httpResp.Header}, se
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: respBody, Headers: httpResp.Header}, nil
}

// MatchResponse mirrors the server's match reply.
type MatchResponse struct {
	RunID  string             `json:"run_id"`
	File   string             `json:"file"`
	Result *types.MatchResult `json:"result"`
}

// Match uploads one file. With format "csv" the raw CSV is returned in
// Response.Body and the decoded MatchResponse is nil. When nothing matched
// the error wraps matcher.ErrNoMatches and the MatchResponse carries the
// server's result, whatever the format.
func (c *Client) Match(ctx context.Context, name string, data []byte, strategy types.Strategy, format string) (*MatchResponse, *Response, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("strategy", strategy.String())
	if format != "" {
		q.Set("format", format)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/match?"+q.Encode(), "application/octet-stream", data)
	if errors.Is(err, matcher.ErrNoMatches) {
		var reply struct {
			Result *MatchResponse `json:"result"`
		}
		if resp.ParseJSON(&reply) == nil && reply.Result != nil {
			return reply.Result, resp, err
		}
		return nil, resp, err
	}
	if err != nil {
		return nil, resp, err
	}
	if format == "csv" {
		return nil, resp, nil
	}
	var out MatchResponse
	if err := resp.ParseJSON(&out); err != nil {
		return nil, resp, err
	}
	return &out, resp, nil
}

// PnL uploads a buy-side and a sell-side file for reconciliation.
func (c *Client) PnL(ctx context.Context, buyName string, buy []byte, sellName string, sell []byte, strategy types.Strategy, format string) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct {
		field, name string
		data        []byte
	}{{"buy", buyName, buy}, {"sell", sellName, sell}} {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(f.data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("strategy", strategy.String())
	if format != "" {
		q.Set("format", format)
	}
	return c.do(ctx, http.MethodPost, "/api/pnl?"+q.Encode(), mw.FormDataContentType(), buf.Bytes())
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", "", nil)
	return err
}

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Second,
		MaxWait:     5 * time.Second,
	}
}

// WaitHealthy polls the health endpoint with exponential backoff.
func (c *Client) WaitHealthy(ctx context.Context, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	waitTime := config.InitialWait
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if lastErr = c.Health(ctx); lastErr == nil {
			return nil
		}
		c.logWarn(ctx, "Server not ready, retrying", "attempt", attempt, "error", lastErr, "waitTime", waitTime)
		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
			waitTime *= 2
			if waitTime > config.MaxWait {
				waitTime = config.MaxWait
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", config.MaxAttempts, lastErr)
}
