package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mataresit/mataresit-go/internal/apierrors"
	"github.com/mataresit/mataresit-go/internal/metrics"
)

// Retry defaults.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
)

// RetryConfig configures retry behavior for rate-limited requests.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is multiplied by 2^attempt to get the wait after a 429.
	BaseDelay time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
	}
}

// Delay returns the wait after the given 1-based attempt: BaseDelay * 2^attempt.
func (r RetryConfig) Delay(attempt int) time.Duration {
	return time.Duration(float64(r.BaseDelay) * math.Pow(2, float64(attempt)))
}

// WithRetry wraps next so that 429 responses are retried with exponential
// backoff. Every other error is returned on first occurrence.
func WithRetry(next Executor, cfg RetryConfig) Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	return &retryExecutor{next: next, cfg: cfg}
}

type retryExecutor struct {
	next Executor
	cfg  RetryConfig
}

func (r *retryExecutor) Execute(ctx context.Context, req *Request) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		data, err := r.next.Execute(ctx, req)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, apierrors.ErrRateLimited) {
			return nil, err
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.cfg.Delay(attempt)
		r.cfg.Logger.Warn("rate limited, retrying",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		r.cfg.Metrics.ObserveRetry()

		if err := r.cfg.Sleep(ctx, delay); err != nil {
			return nil, &apierrors.Error{Message: "retry wait", Err: err}
		}
	}

	return nil, apierrors.New(apierrors.ErrMaxRetriesExceeded, "max retries exceeded", lastErr)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
