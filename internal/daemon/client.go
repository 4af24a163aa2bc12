package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zero-day-ai/conductor/internal/engine"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Client is the HTTP client for the daemon API, used by the CLI.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Start submits a workflow and returns the accepted thread id.
func (c *Client) Start(ctx context.Context, req engine.WorkflowRequest) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/v1/workflows", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the current status report for a thread.
func (c *Client) Status(ctx context.Context, threadID types.ID) (*engine.StatusReport, error) {
	var out engine.StatusReport
	if err := c.do(ctx, http.MethodGet, "/v1/workflows/"+threadID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve answers a pending approval.
func (c *Client) Approve(ctx context.Context, threadID types.ID, approved bool, reason string) error {
	return c.do(ctx, http.MethodPost, "/v1/workflows/"+threadID.String()+"/approval",
		ApprovalRequest{Approved: approved, Reason: reason}, nil)
}

// Cancel requests asynchronous cancellation of a thread.
func (c *Client) Cancel(ctx context.Context, threadID types.ID) error {
	return c.do(ctx, http.MethodDelete, "/v1/workflows/"+threadID.String(), nil, nil)
}

// Health reports daemon liveness and busyness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
