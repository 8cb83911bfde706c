// Package retry implements exponential backoff with jitter for
// operations that may fail transiently — principally the transport's
// WebSocket reconnect loop.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config configures the retry loop.
//
// Exponential backoff with jitter:
//
//	delay = min(InitialDelay * Multiplier^attempt, MaxDelay) + jitter
//
// The jitter is applied after the cap, so a delay can exceed MaxDelay
// by up to JitterFactor of it.
//
// Jitter adds randomness to avoid a thundering herd when many callers
// retry at the same time.
type Config struct {
	// MaxRetries is the maximum number of attempts, including the
	// first. Zero or negative means retry forever (not recommended).
	MaxRetries int

	// InitialDelay is the delay before the first retry. Default 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts. Default 30s.
	MaxDelay time.Duration

	// Multiplier grows the delay exponentially. Default 2.0.
	Multiplier float64

	// JitterFactor is the fraction of randomness applied to each
	// delay (0.0 = none, 1.0 = up to 100% variation). Default 0.1.
	JitterFactor float64

	// RetryIf decides whether an error should be retried. Default:
	// retry everything.
	RetryIf func(error) bool

	// OnRetry is called before each retry; useful for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig is suitable for most network operations: 4 attempts
// with delays of 100ms/200ms/400ms between them plus jitter, capped
// at 30s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// AggressiveConfig retries faster and more often, for operations
// where staying connected matters more than backing off politely.
func AggressiveConfig() Config {
	return Config{
		MaxRetries:   6,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// ConservativeConfig retries less often with longer delays, for
// low-priority background operations.
func ConservativeConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// NetworkConfig uses longer delays, suited to waiting out venue-side
// outages or connectivity blips.
func NetworkConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

func (c *Config) validate() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
}

func (c *Config) calculateDelay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor * (rand.Float64()*2 - 1)
		delay += jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Do runs operation, retrying on failure per cfg, until it succeeds,
// ctx is cancelled, or retries are exhausted. Returns the last error.
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.validate()

	var lastErr error

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		delay := cfg.calculateDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}

	return lastErr
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	cfg.validate()

	var lastErr error
	var zero T

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ctx.Err()
		default:
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return zero, err
		}
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		delay := cfg.calculateDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// RetryableError lets an error opine on whether it should be retried.
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable reports whether err should be retried: true if it
// implements RetryableError (honouring its verdict), or is marked
// Temporary(), defaulting to true otherwise.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}

	type temporary interface {
		Temporary() bool
	}
	var temp temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}

	return true
}

// RetryIfTemporary retries only errors marked Temporary().
func RetryIfTemporary(err error) bool {
	type temporary interface {
		Temporary() bool
	}
	var temp temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// RetryIfNotContext skips retrying context cancellation/deadline errors.
func RetryIfNotContext(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// PermanentError wraps an error that should never be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string   { return e.Err.Error() }
func (e *PermanentError) Unwrap() error   { return e.Err }
func (e *PermanentError) Retryable() bool { return false }

// Permanent wraps err so IsRetryable reports false for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TemporaryError wraps an error that should be retried.
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string   { return e.Err.Error() }
func (e *TemporaryError) Unwrap() error   { return e.Err }
func (e *TemporaryError) Retryable() bool { return true }
func (e *TemporaryError) Temporary() bool { return true }

// Temporary wraps err so IsRetryable reports true for it.
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{Err: err}
}

// Retryer bundles a Config for reuse across many Do/DoWithResult calls.
type Retryer struct {
	cfg Config
}

// NewRetryer builds a Retryer from cfg.
func NewRetryer(cfg Config) *Retryer {
	cfg.validate()
	return &Retryer{cfg: cfg}
}

func (r *Retryer) Do(ctx context.Context, operation func() error) error {
	return Do(ctx, operation, r.cfg)
}

func (r *Retryer) DoWithResult(ctx context.Context, operation func() (interface{}, error)) (interface{}, error) {
	return DoWithResult(ctx, operation, r.cfg)
}

// WithOnRetry returns a copy of r with the given retry callback.
func (r *Retryer) WithOnRetry(onRetry func(attempt int, err error, delay time.Duration)) *Retryer {
	newCfg := r.cfg
	newCfg.OnRetry = onRetry
	return &Retryer{cfg: newCfg}
}

// WithRetryIf returns a copy of r with the given error filter.
func (r *Retryer) WithRetryIf(retryIf func(error) bool) *Retryer {
	newCfg := r.cfg
	newCfg.RetryIf = retryIf
	return &Retryer{cfg: newCfg}
}

// Once runs operation exactly once, honouring ctx cancellation.
func Once(ctx context.Context, operation func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return operation()
}

// Retry runs operation with DefaultConfig.
func Retry(ctx context.Context, operation func() error) error {
	return Do(ctx, operation, DefaultConfig())
}

// RetryN runs operation with DefaultConfig but a custom retry count.
func RetryN(ctx context.Context, operation func() error, maxRetries int) error {
	cfg := DefaultConfig()
	cfg.MaxRetries = maxRetries
	return Do(ctx, operation, cfg)
}
