package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/metrics"
)

const (
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent unless a request overrides it.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.114 Safari/537.36"

	maxErrorBody = 4 << 10
)

// Headers are per-request header overrides.
type Headers map[string]string

// Client performs outbound HTTP requests. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	limit      int
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds or replaces a default header.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithConcurrency bounds the number of requests a fan-out keeps in flight.
// Zero, the default, dispatches every request at once.
func WithConcurrency(limit int) Option {
	return func(c *Client) {
		c.limit = max(limit, 0)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// DefaultHeaders returns the headers every request starts with.
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", DefaultUserAgent)
	h.Set("Content-Type", "application/json")
	return h
}

// New creates a Client with pooled connections and the default headers.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    DefaultHeaders(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, url string, headers Headers) (any, error) {
	return c.doJSON(ctx, http.MethodGet, url, nil, headers)
}

func (c *Client) Delete(ctx context.Context, url string, headers Headers) (any, error) {
	return c.doJSON(ctx, http.MethodDelete, url, nil, headers)
}

// Post sends data encoded as JSON and decodes the JSON response.
func (c *Client) Post(ctx context.Context, url string, data any, headers Headers) (any, error) {
	return c.doJSON(ctx, http.MethodPost, url, data, headers)
}

func (c *Client) Put(ctx context.Context, url string, data any, headers Headers) (any, error) {
	return c.doJSON(ctx, http.MethodPut, url, data, headers)
}

func (c *Client) Patch(ctx context.Context, url string, data any, headers Headers) (any, error) {
	return c.doJSON(ctx, http.MethodPatch, url, data, headers)
}

// Text performs a GET and returns the body as a string.
func (c *Client) Text(ctx context.Context, url string, headers Headers) (string, error) {
	body, err := c.do(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Blob performs a GET and returns the raw body.
func (c *Client) Blob(ctx context.Context, url string, headers Headers) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

func (c *Client) doJSON(ctx context.Context, method, url string, data any, headers Headers) (any, error) {
	body, err := c.do(ctx, method, url, data, headers)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w: %w", method, url, riders.ErrSerialization, err)
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, method, url string, data any, headers Headers) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w: %w", method, url, riders.ErrSerialization, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, url, riders.ErrInvalidInput, err)
	}

	req.Header = c.headers.Clone()
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.metrics.RecordRequestStart(method)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordRequestEnd(method)

	if err != nil {
		c.metrics.RecordRequest(method, 0, time.Since(start))
		c.metrics.RecordError("httpclient", "connectivity")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, url, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, url, riders.ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	c.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w: %w", method, url, riders.ErrConnectivity, err)
	}

	c.logger.Debug("http request", "method", method, "url", url, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return e.Method + " " + e.URL + ": status " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is matches a *StatusError with the same StatusCode, riders.ErrNotFound for
// 404 and riders.ErrAuthentication for 401 and 403.
func (e *StatusError) Is(target error) bool {
	switch target {
	case riders.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case riders.ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}

	var t *StatusError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}
