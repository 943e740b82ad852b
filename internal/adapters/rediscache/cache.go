// Package rediscache decorates a bar provider with a Redis-backed cache.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "habacktest:bars:"

// Client is the subset of the go-redis API the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// NewClient opens a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w: %w", addr, ports.ErrConnectionFailed, err)
	}
	return client, nil
}

// Provider caches successful fetches of the wrapped provider.
// Cache failures never fail a fetch; they are logged and the inner provider is used.
type Provider struct {
	inner  ports.BarProvider
	client Client
	ttl    time.Duration
	logger ports.Logger
}

// New wraps inner with a cache whose entries expire after ttl.
func New(inner ports.BarProvider, client Client, ttl time.Duration, logger ports.Logger) *Provider {
	return &Provider{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider name with a cache marker.
func (p *Provider) Name() string { return p.inner.Name() + "+redis" }

// Key returns the cache key of a fetch window.
func (p *Provider) Key(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s:%s", keyPrefix, p.inner.Name(),
		strings.ToUpper(symbol), start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// FetchMonthlyBars serves from Redis when possible and stores fresh non-empty results.
func (p *Provider) FetchMonthlyBars(ctx context.Context, symbol string, start, end time.Time) ports.FetchResult {
	key := p.Key(symbol, start, end)

	data, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []domain.Bar
		if jsonErr := json.Unmarshal(data, &bars); jsonErr == nil && len(bars) > 0 {
			p.logger.Debug(ctx, "Bar cache hit", map[string]interface{}{"symbol": symbol, "key": key, "bars": len(bars)})
			return ports.Fetched(bars)
		}
		p.logger.Warn(ctx, "Discarding unreadable cache entry", map[string]interface{}{"key": key})
	case errors.Is(err, redis.Nil):
		// miss
	default:
		p.logger.Warn(ctx, "Bar cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	res := p.inner.FetchMonthlyBars(ctx, symbol, start, end)
	if res.Outcome != ports.FetchOK {
		return res
	}

	payload, err := json.Marshal(res.Bars)
	if err != nil {
		p.logger.Warn(ctx, "Bar cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})
		return res
	}
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		p.logger.Warn(ctx, "Bar cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return res
}
