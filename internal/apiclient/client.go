package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 4 << 10

// Client calls the analysis API. Every call carries the caller's bearer token
// explicitly; there is no shared default header.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client for baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ANALYSIS_API_URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// WithHTTPClient swaps the underlying client; used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// NetworkError wraps a transport failure: no reply was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

func (c *Client) Get(ctx context.Context, token, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, token, path, nil)
}

func (c *Client) Post(ctx context.Context, token, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, token, path, body)
}

func (c *Client) Put(ctx context.Context, token, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, token, path, body)
}

func (c *Client) Delete(ctx context.Context, token, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, token, path, nil)
}

func (c *Client) do(ctx context.Context, method, token, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(snippet)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NetworkError{Method: method, Path: path, Err: err}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}
