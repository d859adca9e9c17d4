package brains

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures jittered exponential backoff for brain writes.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first, default 3
	BaseDelay   time.Duration // delay before the first retry, default 100ms
	MaxDelay    time.Duration // backoff ceiling, default 2s
	Jitter      float64       // fractional jitter applied to each delay, default 0.2
}

// DefaultRetryConfig matches the ingestion router's defaults: 3 attempts,
// 100ms base, 2s cap, ±20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      0.2,
	}
}

// WithRetry calls fn, retrying on transient errors (per IsTransient) with
// jittered exponential backoff up to cfg.MaxAttempts. Non-transient errors
// and context cancellation return immediately without consuming the retry
// budget.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}
	return lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << attempt
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter <= 0 {
		return delay
	}
	jitterRange := float64(delay) * cfg.Jitter
	offset := (rand.Float64()*2 - 1) * jitterRange // uniform in [-jitterRange, +jitterRange]
	jittered := float64(delay) + offset
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}
