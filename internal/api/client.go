package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mataresit/mataresit-go/internal/apierrors"
	"github.com/mataresit/mataresit-go/internal/metrics"
)

// Default configuration values.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "mataresit-go/1.0"
)

// Request describes a single API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Executor performs a Request and returns the response's data payload.
type Executor interface {
	Execute(ctx context.Context, req *Request) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Client is the HTTP API client. It performs exactly one round trip per
// Execute call; retries are layered on with WithRetry.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// Option configures the API client.
type Option func(*Client)

// WithBaseURL sets the base URL. A trailing slash is ignored.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. Its own timeout is used as is.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLimiter throttles outbound requests through l.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a new API client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, apierrors.ErrMissingAPIKey
	}

	c := &Client{
		apiKey:    apiKey,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	if c.baseURL == "" {
		return nil, apierrors.New(apierrors.ErrInvalidArgument, "base URL is required", nil)
	}

	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute sends req and returns the data field of the response envelope.
func (c *Client) Execute(ctx context.Context, req *Request) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &apierrors.Error{Message: "rate limiter wait", Err: err}
		}
	}

	requestID := uuid.NewString()
	httpReq, err := c.newHTTPRequest(ctx, req, requestID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.Method, 0, time.Since(start))
		c.logger.Debug("api request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, &apierrors.Error{Message: "request failed", RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(req.Method, resp.StatusCode, elapsed)

	if id := resp.Header.Get("X-Request-ID"); id != "" {
		requestID = id
	}

	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", elapsed),
		zap.String("request_id", requestID),
	)

	if err != nil {
		return nil, &apierrors.Error{
			Message:    "failed to read response",
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}

	return decodeResponse(resp.StatusCode, body, requestID)
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request, requestID string) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &apierrors.Error{Message: "failed to marshal request body", RequestID: requestID, Err: err}
		}
		bodyReader = bytes.NewReader(data)
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, &apierrors.Error{Message: "failed to create request", RequestID: requestID, Err: err}
	}

	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	return httpReq, nil
}

func decodeResponse(status int, body []byte, requestID string) (json.RawMessage, error) {
	ok := status >= 200 && status < 300

	if len(bytes.TrimSpace(body)) == 0 {
		if ok {
			return nil, nil
		}
		return nil, &apierrors.Error{StatusCode: status, Message: defaultErrorMessage, RequestID: requestID}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if ok {
			return nil, &apierrors.Error{
				Message:    "failed to decode response",
				StatusCode: status,
				RequestID:  requestID,
				Err:        err,
			}
		}
		return nil, &apierrors.Error{StatusCode: status, Message: defaultErrorMessage, RequestID: requestID}
	}

	if !ok {
		return nil, &apierrors.Error{
			Message:    env.message(),
			StatusCode: status,
			Code:       env.Code,
			RequestID:  requestID,
		}
	}

	return env.Data, nil
}

// Do executes req through exec and decodes the data payload into out.
// out may be nil when the caller does not need the payload.
func Do(ctx context.Context, exec Executor, req *Request, out any) error {
	data, err := exec.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apierrors.Error{Message: "failed to decode response data", Err: err}
	}
	return nil
}
