package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// retryPolicy bounds how often and how patiently throttled or
// transient operations are re-attempted. The zero value never retries.
type retryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// onRetry is invoked before each sleep, used for progress counters.
	onRetry func()
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// do executes fn, retrying throttled and transient failures with
// jittered exponential backoff. Non-retriable errors return
// immediately; a cancelled context aborts the wait.
func (p retryPolicy) do(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !isRetriable(classifyError(err)) {
			return err
		}

		if attempt >= p.MaxRetries {
			if p.MaxRetries > 0 {
				return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt+1, err)
			}
			return err
		}

		if p.onRetry != nil {
			p.onRetry()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
}

// backoff returns the sleep before the (attempt+1)-th retry: base×2^n
// capped at MaxDelay, with ±10% jitter to avoid thundering herds
// against a throttling API.
func (p retryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := p.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > max || d <= 0 {
		d = max
	}

	jitter := time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	if d+jitter > 0 {
		d += jitter
	}
	return d
}
