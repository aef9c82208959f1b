// Package client is a Go client for the issue tracker HTTP API.
package client

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

	"github.com/k1networth/issuetracker-lite/internal/issue"
	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status    int      `json:"-"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	ID        string   `json:"_id,omitempty"`
	Details   []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// List returns the issues of project matching filters. Keys outside the
// server's allow-list are ignored by the server.
func (c *Client) List(ctx context.Context, project string, filters url.Values) ([]issue.Issue, error) {
	u := c.issuesURL(project)
	if len(filters) > 0 {
		u += "?" + filters.Encode()
	}
	var out []issue.Issue
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, project string, req issue.CreateRequest) (issue.Issue, error) {
	var out issue.Issue
	err := c.do(ctx, http.MethodPost, c.issuesURL(project), req, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, project string, req issue.UpdateRequest) (issue.Confirmation, error) {
	var out issue.Confirmation
	err := c.do(ctx, http.MethodPut, c.issuesURL(project), req, &out)
	return out, err
}

// SetOpen closes or reopens an issue.
func (c *Client) SetOpen(ctx context.Context, project, id string, open bool) (issue.Confirmation, error) {
	raw := "false"
	if open {
		raw = "true"
	}
	return c.Update(ctx, project, issue.UpdateRequest{ID: id, Open: &issue.OpenValue{Raw: raw}})
}

func (c *Client) Delete(ctx context.Context, project, id string) (issue.Confirmation, error) {
	var out issue.Confirmation
	err := c.do(ctx, http.MethodDelete, c.issuesURL(project), issue.DeleteRequest{ID: id}, &out)
	return out, err
}

func (c *Client) issuesURL(project string) string {
	return c.BaseURL + "/api/issues/" + url.PathEscape(project)
}

func (c *Client) do(ctx context.Context, method, u string, body, dst any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := requestid.Get(ctx); rid != "" {
		req.Header.Set(requestid.Header, rid)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(b, &env); err != nil || env.Error.Code == "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      "http_error",
			Message:   strings.TrimSpace(string(b)),
			RequestID: resp.Header.Get(requestid.Header),
		}
	}
	env.Error.Status = resp.StatusCode
	return &env.Error
}
