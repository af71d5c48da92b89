// Package sessionapi is the HTTP client for the external session-management
// API. It owns request timeouts and turns non-2xx responses into typed
// errors naming the failed operation.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"live-clientv1/internal/metrics"
	"live-clientv1/internal/model"
)

const (
	// Lifecycle calls are on the critical path and fail fast; history pulls
	// move more data and get a longer leash.
	lifecycleTimeout = 10 * time.Second
	historyTimeout   = 15 * time.Second
)

// APIError is a non-2xx response from the session API.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("session api: %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

// Client calls the session-management REST API.
type Client struct {
	baseURL string
	http    *http.Client
	met     *metrics.Metrics
}

// New creates a Client for the given base URL (no trailing slash).
func New(baseURL string, met *metrics.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		met:     met,
	}
}

// CreateResponse is the body of POST /sessions.
type CreateResponse struct {
	SessionID string       `json:"session_id"`
	Status    model.Status `json:"status"`
}

// StatusResponse is the body of the lifecycle and GET endpoints.
type StatusResponse struct {
	Status    model.Status        `json:"status"`
	LastState *model.SessionState `json:"last_state,omitempty"`
}

// CreateSession submits a new session config.
func (c *Client) CreateSession(ctx context.Context, cfg model.SessionConfig) (CreateResponse, error) {
	var out CreateResponse
	err := c.do(ctx, "create_session", http.MethodPost, "/sessions", cfg, &out, lifecycleTimeout)
	return out, err
}

// StartSession starts strategy execution for the session.
func (c *Client) StartSession(ctx context.Context, id string) (model.Status, error) {
	var out StatusResponse
	err := c.do(ctx, "start_session", http.MethodPost, "/sessions/"+id+"/start", nil, &out, lifecycleTimeout)
	return out.Status, err
}

// StopSession stops strategy execution. Positions are not implicitly closed.
func (c *Client) StopSession(ctx context.Context, id string) (model.Status, error) {
	var out StatusResponse
	err := c.do(ctx, "stop_session", http.MethodPost, "/sessions/"+id+"/stop", nil, &out, lifecycleTimeout)
	return out.Status, err
}

// GetSession fetches the session status and last reported state.
func (c *Client) GetSession(ctx context.Context, id string) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, "get_session", http.MethodGet, "/sessions/"+id, nil, &out, lifecycleTimeout)
	return out, err
}

// GetBars fetches up to limit historical bars for the session.
func (c *Client) GetBars(ctx context.Context, id string, limit int) ([]model.Bar, error) {
	var out struct {
		Bars []model.Bar `json:"bars"`
	}
	path := "/sessions/" + id + "/bars?limit=" + strconv.Itoa(limit)
	err := c.do(ctx, "get_bars", http.MethodGet, path, nil, &out, historyTimeout)
	return out.Bars, err
}

// GetTrades fetches up to limit historical trades for the session.
func (c *Client) GetTrades(ctx context.Context, id string, limit int) ([]model.Trade, error) {
	var out struct {
		Trades []model.Trade `json:"trades"`
	}
	path := "/sessions/" + id + "/trades?limit=" + strconv.Itoa(limit)
	err := c.do(ctx, "get_trades", http.MethodGet, path, nil, &out, historyTimeout)
	return out.Trades, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, timeout time.Duration) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, body, out, timeout)
	c.met.ObserveAPIRequest(op, time.Since(start), err)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			apiErr.Op = op
			return apiErr
		}
		return fmt.Errorf("session api: %s: %w", op, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := decodeDetail(resp.Body)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeDetail extracts the {detail} message all non-2xx responses carry.
func decodeDetail(r io.Reader) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return ""
	}
	return body.Detail
}
