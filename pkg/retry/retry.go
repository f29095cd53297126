package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- fraction applied to each delay
}

// DefaultConfig returns defaults suited to broker publishes and startup connects:
// 3 retries with 100ms initial delay, capped at 5s, doubling each time, with 10% jitter
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// WithMaxRetries returns a copy of the default config with a different retry budget.
func WithMaxRetries(n int) *Config {
	cfg := DefaultConfig()
	if n >= 0 {
		cfg.MaxRetries = n
	}
	return cfg
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// backoff tracks the delay between attempts.
type backoff struct {
	cfg   *Config
	delay time.Duration
}

func newBackoff(cfg *Config) *backoff {
	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// wait sleeps for the current delay and grows it. Returns ctx.Err() if the
// context ends first.
func (b *backoff) wait(ctx context.Context) error {
	timer := time.NewTimer(applyJitter(b.delay, b.cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
		b.delay = time.Duration(float64(b.delay) * b.cfg.Multiplier)
		if b.delay > b.cfg.MaxDelay {
			b.delay = b.cfg.MaxDelay
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn with exponential backoff retry logic.
// Returns nil on success, or the last error after all retries are exhausted.
// Respects context cancellation during wait periods.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn and returns both result and error.
// Used for constructors that can fail transiently, such as opening the connection pool.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, fn, func(error) bool { return true })
}

// DoIfRetryable only retries errors that IsRetryable classifies as transient.
// Permanent errors are returned immediately.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := run(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	}, IsRetryable)
	return err
}

func run[T any](ctx context.Context, cfg *Config, fn func() (T, error), shouldRetry func(error) bool) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := newBackoff(cfg)
	var (
		result  T
		lastErr error
	)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if !shouldRetry(err) {
			return result, err
		}

		if attempt < cfg.MaxRetries {
			if err := b.wait(ctx); err != nil {
				return result, err
			}
		}
	}

	return result, lastErr
}

// RetryableError is an interface for errors that explicitly declare their retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

// IsRetryable determines if an error is transient and worth retrying.
//
// The checks run in this order:
//  1. context cancellation is never retried
//  2. errors implementing RetryableError decide for themselves
//  3. errors reporting Temporary() or Timeout() (net.Error, kafka.Error) are retried
//  4. otherwise the message is matched against known transient patterns
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"network is unreachable",
	"leader not available",
	"not leader for partition",
	"loading dataset in memory",
	"deadlock",
}
