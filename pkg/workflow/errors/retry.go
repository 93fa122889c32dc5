package errors

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig is the retry policy for a collaborator call.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt. Each later wait
	// grows by BackoffFactor up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// Jitter spreads each wait by ±Jitter of its length (0.0-1.0).
	Jitter float64

	// RetryableFunc overrides IsRetryable.
	RetryableFunc func(error) bool

	// OnRetry is called before each wait with the failed attempt number
	// (starting at 1), its error and the wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry is the base for NewRetryConfig.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// CollaboratorRetry is tuned for interactive model and search calls.
// A patient is waiting on the turn, so waits stay short.
var CollaboratorRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.2,
}

// RetryResult is the outcome of WithRetry or WithRetryContext.
type RetryResult[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// WithRetry runs fn under cfg without a context.
func WithRetry[T any](cfg RetryConfig, fn func() (T, error)) RetryResult[T] {
	return WithRetryContext(context.Background(), cfg, func(context.Context) (T, error) {
		return fn()
	})
}

// WithRetryContext runs fn until it succeeds, fails with a non-retryable
// error, runs out of attempts, or ctx ends. Failures are returned as a
// *CategorizedError wrapping the last error.
func WithRetryContext[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) RetryResult[T] {
	start := time.Now()
	attempts := max(cfg.MaxAttempts, 1)
	retryable := cfg.RetryableFunc
	if retryable == nil {
		retryable = IsRetryable
	}

	fail := func(n int, err *CategorizedError) RetryResult[T] {
		return RetryResult[T]{Err: err, Attempts: n, Duration: time.Since(start)}
	}

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return fail(n-1, &CategorizedError{Err: err, Category: CategoryPermanent, Context: "context cancelled"})
		}

		value, err := fn(ctx)
		if err == nil {
			return RetryResult[T]{Value: value, Attempts: n, Duration: time.Since(start)}
		}
		if !retryable(err) {
			return fail(n, &CategorizedError{Err: err, Category: Categorize(err), Retries: n})
		}
		if n >= attempts {
			return fail(n, &CategorizedError{Err: err, Category: Categorize(err), Retries: n, Context: "max retries exceeded"})
		}

		wait := max(cfg.backoff(n), retryAfter(err, cfg.MaxBackoff))
		if cfg.OnRetry != nil {
			cfg.OnRetry(n, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fail(n, &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Context: "context cancelled during backoff"})
		case <-timer.C:
		}
	}
}

// backoff returns the jittered wait after the given failed attempt.
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(cfg.InitialBackoff) * math.Pow(factor, float64(attempt-1)))
	if cfg.MaxBackoff > 0 && (d > cfg.MaxBackoff || d < 0) {
		d = cfg.MaxBackoff
	}
	return calculateBackoff(d, cfg.Jitter)
}

// retryAfter returns the server's Retry-After hint, capped at limit.
func retryAfter(err error, limit time.Duration) time.Duration {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.RetryAfter <= 0 {
		return 0
	}
	if limit > 0 && httpErr.RetryAfter > limit {
		return limit
	}
	return httpErr.RetryAfter
}

// calculateBackoff spreads base by ±jitter.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	return time.Duration(float64(base) * (1 + jitter*(rand.Float64()*2-1)))
}

// LogRetries returns an OnRetry hook that logs each retry of the named
// collaborator at warn level.
func LogRetries(logger *slog.Logger, collaborator string) func(int, error, time.Duration) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(attempt int, err error, wait time.Duration) {
		logger.Warn("collaborator call failed, retrying",
			"collaborator", collaborator,
			"attempt", attempt,
			"category", Categorize(err).String(),
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}
}

// RetryOption configures a RetryConfig.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the attempt limit.
func WithMaxAttempts(n int) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxAttempts = n }
}

// WithInitialBackoff sets the first wait.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.InitialBackoff = d }
}

// WithMaxBackoff caps every wait, including Retry-After hints.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxBackoff = d }
}

func WithBackoffFactor(f float64) RetryOption {
	return func(cfg *RetryConfig) { cfg.BackoffFactor = f }
}

func WithJitter(j float64) RetryOption {
	return func(cfg *RetryConfig) { cfg.Jitter = j }
}

func WithRetryableFunc(fn func(error) bool) RetryOption {
	return func(cfg *RetryConfig) { cfg.RetryableFunc = fn }
}

// WithOnRetry sets the hook called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) RetryOption {
	return func(cfg *RetryConfig) { cfg.OnRetry = fn }
}

// NewRetryConfig applies opts to DefaultRetry.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
