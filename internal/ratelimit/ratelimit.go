// Package ratelimit provides throttles for outbound market-data requests.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"haBacktest/internal/ports"
)

// TokenBucket allows one request per interval on average with bursts up to burst.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token-bucket throttle. A non-positive interval disables throttling.
func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or ctx is done.
func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return wrapWaitErr(ctx, err)
	}
	return nil
}

// FixedDelay enforces a minimum gap between consecutive requests, shared by all callers.
type FixedDelay struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

// NewFixedDelay creates a fixed-delay throttle.
func NewFixedDelay(interval time.Duration) *FixedDelay {
	return &FixedDelay{interval: interval, now: time.Now}
}

// Wait reserves the next slot and sleeps until it arrives or ctx is done.
func (f *FixedDelay) Wait(ctx context.Context) error {
	if f.interval <= 0 {
		return ctx.Err()
	}

	f.mu.Lock()
	now := f.now()
	slot := f.next
	if slot.Before(now) {
		slot = now
	}
	f.next = slot.Add(f.interval)
	f.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wrapWaitErr(ctx, ctx.Err())
	case <-timer.C:
		return nil
	}
}

type none struct{}

func (none) Wait(ctx context.Context) error { return ctx.Err() }

// None is a throttle that never delays.
var None ports.Throttle = none{}

// New builds the throttle named by mode.
func New(mode string, interval time.Duration) (ports.Throttle, error) {
	switch mode {
	case "token_bucket":
		return NewTokenBucket(interval, 1), nil
	case "fixed_delay":
		return NewFixedDelay(interval), nil
	case "none", "":
		return None, nil
	default:
		return nil, fmt.Errorf("%w: unknown rate limit mode '%s'", ports.ErrConfigurationError, mode)
	}
}

func wrapWaitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("throttle wait: %w: %w", ports.ErrContextCanceled, ctx.Err())
	}
	// rate.Limiter reports a deadline that would be exceeded before ctx ends.
	return fmt.Errorf("throttle wait: %w: %w", ports.ErrRateLimited, err)
}
