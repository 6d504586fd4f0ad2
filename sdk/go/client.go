package missionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Mission Control HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Owner    string `json:"owner,omitempty"`
}

// Output represents a finished deliverable.
type Output struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	URL       string   `json:"url,omitempty"`
	Content   string   `json:"content,omitempty"`
	Owner     string   `json:"owner,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

// Activity represents an activity log entry.
type Activity struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	Actor     string `json:"actor,omitempty"`
}

// SearchResult is a scored search hit.
type SearchResult struct {
	Type  string          `json:"type"`
	Item  json.RawMessage `json:"item"`
	Score int             `json:"score"`
}

// SearchResponse is the /search payload.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// CreateOutputRequest is the /outputs create payload.
type CreateOutputRequest struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	URL     string   `json:"url,omitempty"`
	Content string   `json:"content,omitempty"`
	Owner   string   `json:"owner,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a personal task.
func (c *Client) CreateTask(ctx context.Context, title, priority string) (Task, error) {
	body := map[string]any{"title": title}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// CreateOutput records a deliverable.
func (c *Client) CreateOutput(ctx context.Context, req CreateOutputRequest) (Output, error) {
	var resp Output
	err := c.do(ctx, http.MethodPost, "outputs", req, &resp)
	return resp, err
}

// LogActivity appends an activity entry.
func (c *Client) LogActivity(ctx context.Context, typ, action, details string) (Activity, error) {
	body := map[string]any{
		"type":    typ,
		"action":  action,
		"details": details,
	}
	var resp Activity
	err := c.do(ctx, http.MethodPost, "activities", body, &resp)
	return resp, err
}

// Activities returns recent activity entries.
func (c *Client) Activities(ctx context.Context, limit int) ([]Activity, error) {
	endpoint := "activities"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Search runs a relevance query over activities and tasks.
func (c *Client) Search(ctx context.Context, query string) (SearchResponse, error) {
	var resp SearchResponse
	endpoint := "search?q=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if !strings.HasSuffix(base, "/v0") {
		base += "/v0"
	}
	return base
}
