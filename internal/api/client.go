package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable reports that the daemon API could not be reached.
var ErrUnavailable = errors.New("daemon api unavailable")

// StatusError carries a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api returned %d", e.Code)
	}
	return fmt.Sprintf("daemon api returned %d: %s", e.Code, e.Message)
}

// Client talks to the daemon's query API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the API listening on bind. Wildcard hosts are
// dialled on loopback.
func NewClient(bind, token string, timeout time.Duration) (*Client, error) {
	base, err := BaseURL(bind)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL converts a listen address into a dialable http URL.
func BaseURL(bind string) (string, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return "", fmt.Errorf("api bind address not configured")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "", fmt.Errorf("parse api bind %q: %w", bind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Strikes lists strike records, optionally for a single instance.
func (c *Client) Strikes(ctx context.Context, instance string) (*StrikesResponse, error) {
	query := url.Values{}
	if strings.TrimSpace(instance) != "" {
		query.Set("instance", instance)
	}
	var resp StrikesResponse
	if err := c.do(ctx, http.MethodGet, "/api/strikes", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Actions lists the most recent remediation actions.
func (c *Client) Actions(ctx context.Context, limit int) (*ActionsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp ActionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/actions", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotify asks the daemon to send a test notification on every channel.
func (c *Client) TestNotify(ctx context.Context) (*TestNotifyResponse, error) {
	var resp TestNotifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/test-notify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload ErrorResponse
		_ = json.Unmarshal(data, &payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
