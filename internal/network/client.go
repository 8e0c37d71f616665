// Package network holds the clients that talk to a running autotyper
// service: a typed HTTP client and a reconnecting websocket subscriber.
package network

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

	"autotyper/internal/control"
)

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a lifecycle conflict (already running
// or not running)
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client calls the HTTP control API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL
// (e.g. "http://127.0.0.1:5000"). A bare host:port gets an http scheme.
func NewClient(baseURL, token string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the service address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var e struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Health checks that the service is up
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Status(ctx context.Context) (control.Status, error) {
	var st control.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// EnqueueWords queues words and returns the new queue length
func (c *Client) EnqueueWords(ctx context.Context, words []string) (int, error) {
	var resp struct {
		QueueLen int `json:"queue_len"`
	}
	err := c.do(ctx, http.MethodPost, "/api/words", map[string][]string{"words": words}, &resp)
	return resp.QueueLen, err
}

// Start starts a run and returns its id
func (c *Client) Start(ctx context.Context) (string, error) {
	var resp struct {
		RunID string `json:"run_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/start", nil, &resp)
	return resp.RunID, err
}

func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/stop", nil, nil)
}

// Typed returns the typed log; tail > 0 limits it to the last tail entries
func (c *Client) Typed(ctx context.Context, tail int) ([]string, error) {
	path := "/api/typed"
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}
	var resp struct {
		TypedWords []string `json:"typed_words"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.TypedWords, err
}

func (c *Client) SetSpeed(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/speed", map[string]string{"value": name}, nil)
}

// SetErrorChance sends the raw user value; the server validates it
func (c *Client) SetErrorChance(ctx context.Context, value string) error {
	return c.do(ctx, http.MethodPost, "/api/error-chance", map[string]string{"value": value}, nil)
}

// SetCustomDelay sends the raw user value in seconds; the server validates it
func (c *Client) SetCustomDelay(ctx context.Context, value string) error {
	return c.do(ctx, http.MethodPost, "/api/custom-delay", map[string]string{"value": value}, nil)
}

// Toggle flips continue, errors, memory or parsing and returns the new value
func (c *Client) Toggle(ctx context.Context, flag string) (bool, error) {
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/api/toggle/"+url.PathEscape(flag), nil, &resp); err != nil {
		return false, err
	}
	for key, v := range resp {
		if b, ok := v.(bool); ok && key != "status" {
			return b, nil
		}
	}
	return false, fmt.Errorf("toggle %s: no value in response", flag)
}

func (c *Client) ForceParse(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/force-parse", nil, nil)
}

// ParsingStatus polls the parsing flags; it consumes the force flag
func (c *Client) ParsingStatus(ctx context.Context) (control.ParsingStatus, error) {
	var ps control.ParsingStatus
	err := c.do(ctx, http.MethodGet, "/api/parsing-status", nil, &ps)
	return ps, err
}

// ClearQueue drops pending words and returns how many were dropped
func (c *Client) ClearQueue(ctx context.Context) (int, error) {
	var resp struct {
		Dropped int `json:"dropped"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/queue", nil, &resp)
	return resp.Dropped, err
}
