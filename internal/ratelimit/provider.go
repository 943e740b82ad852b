package ratelimit

import (
	"context"
	"time"

	"haBacktest/internal/ports"
)

// Provider gates every fetch of the wrapped provider behind a throttle.
// Place it beneath any cache so that cache hits are never delayed.
type Provider struct {
	inner    ports.BarProvider
	throttle ports.Throttle
}

// NewProvider wraps inner so each fetch first waits on throttle.
func NewProvider(inner ports.BarProvider, throttle ports.Throttle) *Provider {
	return &Provider{inner: inner, throttle: throttle}
}

// FetchMonthlyBars waits for the throttle and then delegates.
// A wait that ends without a slot is reported as a failed fetch.
func (p *Provider) FetchMonthlyBars(ctx context.Context, symbol string, start, end time.Time) ports.FetchResult {
	if err := p.throttle.Wait(ctx); err != nil {
		return ports.FetchError(err)
	}
	return p.inner.FetchMonthlyBars(ctx, symbol, start, end)
}

// Name returns the wrapped provider's name.
func (p *Provider) Name() string { return p.inner.Name() }
