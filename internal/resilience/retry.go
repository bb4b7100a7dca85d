package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig shapes the backoff loop around one outbound call. Zero values
// take defaults at call time, except JitterFraction where zero means no
// jitter.
type RetryConfig struct {
	// MaxAttempts counts the first try too; 1 means no retries. Default 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay. Default 30s.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each attempt. Default 2.
	Multiplier float64

	// JitterFraction spreads each delay by up to this fraction either way.
	JitterFraction float64

	// ShouldRetry decides which errors are worth another attempt. Nil uses
	// IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each backoff sleep with the attempt just failed.
	OnRetry func(attempt int, err error)
}

// FromRetryConfig builds a RetryConfig from flat config values. Zero or
// negative values keep the defaults, including 25% jitter.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := RetryConfig{
		MaxAttempts:    maxAttempts,
		Multiplier:     multiplier,
		JitterFraction: 0.25,
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if jitterFraction >= 0 {
		cfg.JitterFraction = jitterFraction
	}
	return cfg
}

// DoVal runs fn up to MaxAttempts times, sleeping with exponential backoff
// between attempts. Non-retryable errors and context cancellation return
// immediately with the attempt's error.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !cfg.ShouldRetry(err) || attempt >= cfg.MaxAttempts {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(cfg.backoff(attempt)):
		}
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	return cfg
}

// backoff returns the capped, jittered delay after the given failed attempt
// (1-based).
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		d += d * cfg.JitterFraction * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// RetryLogger returns an OnRetry hook that logs each backoff against the
// named source.
func RetryLogger(source string) func(attempt int, err error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying after transient failure",
			zap.String("source", source),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}
