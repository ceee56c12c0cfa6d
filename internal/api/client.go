package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dualsub/internal/history"
	"dualsub/internal/jobs"
	"dualsub/internal/workflow"
)

// Error is a non-2xx response decoded by Client.
type Error struct {
	StatusCode int
	Message    string
	Kind       string
	Hint       string
}

func (e *Error) Error() string {
	if e.Hint != "" && e.Hint != "no action needed" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Hint)
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to a daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for a bind address ("127.0.0.1:7488") or a full
// base URL.
func NewClient(bind, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit creates a job.
func (c *Client) Submit(ctx context.Context, req workflow.Request) (jobs.Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &resp)
	return resp.Job, err
}

// Jobs lists jobs, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error) {
	query := url.Values{}
	for _, s := range statuses {
		query.Add("status", string(s))
	}
	var resp JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &resp)
	return resp.Jobs, err
}

// Job fetches one job.
func (c *Client) Job(ctx context.Context, id string) (jobs.Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Job, err
}

// Progress fetches a job's progress snapshot.
func (c *Client) Progress(ctx context.Context, id string) (ProgressResponse, error) {
	var resp ProgressResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/status", nil, nil, &resp)
	return resp, err
}

// Cancel cancels a job.
func (c *Client) Cancel(ctx context.Context, id string) (jobs.Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, &resp)
	return resp.Job, err
}

// Cleanup drops terminal jobs older than retentionHours. Zero uses the
// daemon's configured retention.
func (c *Client) Cleanup(ctx context.Context, retentionHours int) (CleanupResponse, error) {
	query := url.Values{}
	if retentionHours > 0 {
		query.Set("retention_hours", strconv.Itoa(retentionHours))
	}
	var resp CleanupResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/cleanup", query, nil, &resp)
	return resp, err
}

// History lists archived jobs.
func (c *Client) History(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Type != "" {
		query.Set("type", string(filter.Type))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	var resp HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history", query, nil, &resp)
	return resp.Entries, err
}

// Status fetches the daemon status report.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
			apiErr.Hint = payload.Hint
		} else {
			apiErr.Message = fmt.Sprintf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
