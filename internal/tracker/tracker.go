package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Item is one tracker work item.
type Item struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Client is the consumed tracker CRUD collaborator.
type Client interface {
	Create(ctx context.Context, item Item) (*Item, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Comment(ctx context.Context, id, body string) error
}

// HTTPClient talks to a tracker over its REST API with bearer-token auth.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a tracker client for baseURL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Create opens a new tracker item and returns it with its assigned id.
func (c *HTTPClient) Create(ctx context.Context, item Item) (*Item, error) {
	var created Item
	if err := c.do(ctx, http.MethodPost, "/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update patches fields of an existing item.
func (c *HTTPClient) Update(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/items/"+id, fields, nil)
}

// Comment appends a comment to an item.
func (c *HTTPClient) Comment(ctx context.Context, id, body string) error {
	return c.do(ctx, http.MethodPost, "/items/"+id+"/comments", map[string]string{"body": body}, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return types.WrapError(types.TRACKER_CALL_FAILED, "failed to encode tracker payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return types.WrapError(types.TRACKER_CALL_FAILED, "failed to build tracker request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.WrapError(types.TRACKER_CALL_FAILED, "tracker request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewError(types.TRACKER_CALL_FAILED,
			fmt.Sprintf("tracker returned %d for %s %s: %s", resp.StatusCode, method, path, detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return types.WrapError(types.TRACKER_CALL_FAILED, "failed to decode tracker response", err)
		}
	}
	return nil
}
