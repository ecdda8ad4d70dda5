// Package ctl is the client side of the devdash API used by devdashctl.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/devdash/internal/history"
	"codeberg.org/mutker/devdash/internal/server"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

const DefaultTimeout = 5 * time.Second

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// APIError is a failure reported by the daemon.
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Msg)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
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

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Msg: msg}
	}

	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Error}
	}

	if dst == nil || len(env.Data) == 0 {
		return nil
	}

	return json.Unmarshal(env.Data, dst)
}

func (c *Client) State(ctx context.Context) (telemetry.View, error) {
	var v telemetry.View
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &v)
	return v, err
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/refresh", nil, nil)
}

func (c *Client) Goal(ctx context.Context) (int, error) {
	var g server.GoalRequest
	err := c.do(ctx, http.MethodGet, "/api/goal", nil, &g)
	return g.Goal, err
}

func (c *Client) SetGoal(ctx context.Context, goal int) (int, error) {
	var g server.GoalRequest
	err := c.do(ctx, http.MethodPut, "/api/goal", server.GoalRequest{Goal: goal}, &g)
	return g.Goal, err
}

func (c *Client) AddSteps(ctx context.Context, steps int, at time.Time) error {
	return c.do(ctx, http.MethodPost, "/api/steps", server.StepsRequest{Steps: steps, At: at}, nil)
}

func (c *Client) History(ctx context.Context, limit int) ([]history.Sample, error) {
	var samples []history.Sample
	path := "/api/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	err := c.do(ctx, http.MethodGet, path, nil, &samples)
	return samples, err
}

// WebSocketURL derives the live endpoint from the base URL.
func (c *Client) WebSocketURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""

	return u.String(), nil
}
