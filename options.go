package mataresit

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Mataresit external API.
const DefaultBaseURL = "https://mpmkbtsufihzdelrlszs.supabase.co/functions/v1/external-api/api/v1"

const (
	defaultRetries        = 3
	defaultRetryBaseDelay = time.Second
	defaultTimeout        = 30 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultMaxWait        = 30 * time.Second
	defaultBatchSize      = 10
	defaultBatchDelay     = time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	retries        int
	retryBaseDelay time.Duration
	userAgent      string
	logger         *zap.Logger
	registerer     prometheus.Registerer
	rateLimit      rate.Limit
	rateBurst      int
}

// waitConfig holds configuration for waiting on receipt processing.
type waitConfig struct {
	pollInterval time.Duration
	maxWait      time.Duration
}

// bulkConfig holds configuration for BulkUpload.
type bulkConfig struct {
	batchSize  int
	batchDelay time.Duration
	progress   func(BatchProgress)
}

// Option configures the client.
type Option func(*clientConfig)

// WaitOption configures WaitForProcessing.
type WaitOption func(*waitConfig)

// BulkOption configures BulkUpload.
type BulkOption func(*bulkConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the maximum number of attempts for a rate-limited call.
// Zero disables retrying.
// Default: 3
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithRetryBaseDelay sets the unit of the exponential backoff. The wait after
// attempt n is base * 2^n.
// Default: 1 second
func WithRetryBaseDelay(base time.Duration) Option {
	return func(c *clientConfig) {
		c.retryBaseDelay = base
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger. The client logs nothing by default.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMetrics registers request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithRateLimit throttles outbound requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimit = r
		c.rateBurst = burst
	}
}

// WithPollInterval sets the wait between processing status checks.
// Default: 2 seconds
func WithPollInterval(interval time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.pollInterval = interval
	}
}

// WithMaxWait sets how long to wait for processing before giving up.
// Default: 30 seconds
func WithMaxWait(maxWait time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.maxWait = maxWait
	}
}

// WithBatchSize sets how many receipts are sent per batch request.
// Default: 10
func WithBatchSize(size int) BulkOption {
	return func(c *bulkConfig) {
		c.batchSize = size
	}
}

// WithBatchDelay sets the pause between consecutive batch requests.
// Default: 1 second
func WithBatchDelay(delay time.Duration) BulkOption {
	return func(c *bulkConfig) {
		c.batchDelay = delay
	}
}

// WithProgress registers fn to be called after each batch completes.
func WithProgress(fn func(BatchProgress)) BulkOption {
	return func(c *bulkConfig) {
		c.progress = fn
	}
}
