package mataresit

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mataresit/mataresit-go/internal/api"
	"github.com/mataresit/mataresit-go/internal/apierrors"
	"github.com/mataresit/mataresit-go/internal/metrics"
)

// Client is the Mataresit API client. It holds only immutable configuration
// and is safe for concurrent use.
type Client struct {
	apiClient *api.Client
	exec      api.Executor
	logger    *zap.Logger
	metrics   *metrics.Collector

	// sleep and now back every retry, poll and batch wait.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(apiKey string, cfg *clientConfig, logger *zap.Logger, collector *metrics.Collector) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
		api.WithLogger(logger),
		api.WithMetrics(collector),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	if cfg.userAgent != "" {
		apiOpts = append(apiOpts, api.WithUserAgent(cfg.userAgent))
	}
	if cfg.rateLimit > 0 {
		burst := cfg.rateBurst
		if burst < 1 {
			burst = 1
		}
		apiOpts = append(apiOpts, api.WithLimiter(rate.NewLimiter(cfg.rateLimit, burst)))
	}

	return api.New(apiKey, apiOpts...)
}

// New creates a new Mataresit client with the given API key. It performs no
// network calls; use Health to verify the key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &clientConfig{
		baseURL:        DefaultBaseURL,
		timeout:        defaultTimeout,
		retries:        defaultRetries,
		retryBaseDelay: defaultRetryBaseDelay,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var collector *metrics.Collector
	if cfg.registerer != nil {
		var err error
		collector, err = metrics.New(cfg.registerer)
		if err != nil {
			return nil, &apierrors.Error{Message: "register metrics", Err: err}
		}
	}

	apiClient, err := buildAPIClient(apiKey, cfg, logger, collector)
	if err != nil {
		return nil, err
	}

	c := &Client{
		apiClient: apiClient,
		exec:      apiClient,
		logger:    logger,
		metrics:   collector,
		sleep:     api.Sleep,
		now:       time.Now,
	}

	if cfg.retries > 0 {
		c.exec = api.WithRetry(apiClient, api.RetryConfig{
			MaxAttempts: cfg.retries,
			BaseDelay:   cfg.retryBaseDelay,
			Logger:      logger,
			Metrics:     collector,
			Sleep: func(ctx context.Context, d time.Duration) error {
				return c.sleep(ctx, d)
			},
		})
	}

	return c, nil
}

// BaseURL returns the API base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.apiClient.BaseURL()
}

func (c *Client) do(ctx context.Context, req *api.Request, out any) error {
	return api.Do(ctx, c.exec, req, out)
}

// Health checks API availability and reports the scopes of the API key.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: "/health"}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
