// Package client is the Record Store Client: a bearer-authenticated JSON
// REST client for the residence backend. Every request carries the session
// token and an X-Request-ID header, is traced with OpenTelemetry, and is
// counted in the Prometheus client metrics. Requests are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/residenciauni/residencia/pkg/observability"
)

const tracerName = "github.com/residenciauni/residencia/pkg/client"

// Client talks to the backend REST API
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	base       http.RoundTripper
	metrics    *observability.Metrics
	logger     *observability.Logger
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithMetrics records request metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for request tracing at debug level
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
		logger:  observability.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{
		Timeout:   c.timeout,
		Transport: buildTransport(c.base, c.token, c.metrics),
	}
	return c
}

// Authorized returns a copy of the client that sends token
func (c *Client) Authorized(token string) *Client {
	return New(c.baseURL,
		WithToken(token),
		WithTimeout(c.timeout),
		WithTransport(c.base),
		WithMetrics(c.metrics),
		WithLogger(c.logger),
	)
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticated reports whether the client sends a bearer token
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// do sends a JSON request and returns the raw response body for 2xx responses
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+path)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	observability.UpdateLoggerWithTraceContext(ctx, c.logger).WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.text()
		}
		return nil, apiErr
	}

	return data, nil
}

// doJSON sends a request and decodes a non-empty response into out
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if isEmpty(data) {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

func isEmpty(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
