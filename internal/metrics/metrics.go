// Package metrics exposes Prometheus instrumentation for outbound API calls.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mataresit_client"

// Collector records request, retry and batch metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  prometheus.Counter
	batches  *prometheus.CounterVec
}

// New creates a Collector and registers it with reg. Collectors that are
// already registered on reg are reused, so several clients may share one
// registry.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "API requests by method and response status class",
			},
			[]string{"method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Round-trip latency of API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_retries_total",
				Help:      "Requests retried after a 429 response",
			},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_batches_total",
				Help:      "Bulk upload chunks by outcome",
			},
			[]string{"outcome"},
		),
	}

	var err error
	if c.requests, err = register(reg, c.requests); err != nil {
		return nil, err
	}
	if c.duration, err = register(reg, c.duration); err != nil {
		return nil, err
	}
	if c.retries, err = register(reg, c.retries); err != nil {
		return nil, err
	}
	if c.batches, err = register(reg, c.batches); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveRequest records one HTTP round trip. status is 0 for transport failures.
func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(method, StatusClass(status)).Inc()
	c.duration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveRetry records a rate-limited attempt that will be retried.
func (c *Collector) ObserveRetry() {
	if c == nil {
		return
	}
	c.retries.Inc()
}

// ObserveBatch records a bulk upload chunk outcome: "ok", "partial" or "failed".
func (c *Collector) ObserveBatch(outcome string) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(outcome).Inc()
}

// StatusClass maps a status code to a low-cardinality label such as "2xx".
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
