package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lifesim/internal/credit"
	"lifesim/internal/sim"
	"lifesim/internal/threshold"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, nil, 0)
}

func (c *Client) World(ctx context.Context) (sim.World, error) {
	var out sim.World
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/world", nil, &out, 0)
	return out, err
}

func (c *Client) Tick(ctx context.Context) (sim.Report, error) {
	var out sim.Report
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/world/tick", nil, &out, 0)
	return out, err
}

func (c *Client) Reports(ctx context.Context, limit int) ([]sim.Report, error) {
	var out struct {
		Reports []sim.Report `json:"reports"`
	}
	path := "/v1/world/reports"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, 0)
	return out.Reports, err
}

func (c *Client) Thresholds(ctx context.Context, stats threshold.Stats) (threshold.Result, error) {
	var out threshold.Result
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/thresholds", stats, &out, 0)
	return out, err
}

func (c *Client) Schedule(ctx context.Context, principal, annualRate float64, termQuarters int) (credit.Amortization, error) {
	var out credit.Amortization
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/credit/schedule", map[string]any{
		"principal":     principal,
		"annual_rate":   annualRate,
		"term_quarters": termQuarters,
	}, &out, 0)
	return out, err
}

// Loan asks the API to underwrite req. A rejection is not an error: the
// returned validation carries the reason.
func (c *Client) Loan(ctx context.Context, req credit.LoanRequest, seed int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/credit/loan", req, &out, seed)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
		if jerr := json.Unmarshal([]byte(apiErr.Message), &out); jerr == nil {
			return out, nil
		}
	}
	return out, err
}

func (c *Client) Do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, body, &out, 0)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, seed int64) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if seed != 0 {
		req.Header.Set("X-Seed", strconv.FormatInt(seed, 10))
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
