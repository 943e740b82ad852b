// Package bootstrap builds the adapters shared by the command-line tools from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"haBacktest/config"
	"haBacktest/internal/adapters/binanceclient"
	"haBacktest/internal/adapters/csvfeed"
	"haBacktest/internal/adapters/logger"
	"haBacktest/internal/adapters/rediscache"
	"haBacktest/internal/adapters/yahoo"
	"haBacktest/internal/ports"
	"haBacktest/internal/ratelimit"
)

// NewLogger returns the logger selected by LOG_FORMAT and a flush function.
// Every line carries the configured data provider.
func NewLogger(cfg *config.Config) (ports.Logger, func(), error) {
	fields := map[string]interface{}{"provider": cfg.DataProvider}
	switch cfg.LogFormat {
	case "json":
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("init zap logger: %w", err)
		}
		return zl.With(fields), func() { _ = zl.Sync() }, nil
	default:
		return logger.NewStdLogger(cfg.LogLevel).With(fields), func() {}, nil
	}
}

// NewProvider builds the configured bar provider. Requests to the upstream source pass
// through the configured throttle, and the Redis cache wraps the throttled provider
// when REDIS_ADDR is set, so cache hits are never delayed.
// An unreachable Redis is logged and skipped. The returned close function releases the cache client.
func NewProvider(ctx context.Context, cfg *config.Config, log ports.Logger) (ports.BarProvider, func(), error) {
	var provider ports.BarProvider
	switch cfg.DataProvider {
	case config.ProviderYahoo:
		c, err := yahoo.New(yahoo.Config{
			BaseURL:      cfg.YahooBaseURL,
			SymbolSuffix: cfg.YahooSymbolSuffix,
			Logger:       log,
		})
		if err != nil {
			return nil, nil, err
		}
		provider = c
	case config.ProviderBinance:
		c, err := binanceclient.New(binanceclient.Config{
			APIKey:       cfg.BinanceAPIKey,
			SecretKey:    cfg.BinanceSecretKey,
			SymbolSuffix: cfg.BinanceQuoteAsset,
			Logger:       log,
		})
		if err != nil {
			return nil, nil, err
		}
		provider = c
	case config.ProviderCSV:
		c, err := csvfeed.New(cfg.CSVDataDir, log)
		if err != nil {
			return nil, nil, err
		}
		provider = c
	default:
		return nil, nil, fmt.Errorf("%w: unknown data provider '%s'", ports.ErrConfigurationError, cfg.DataProvider)
	}

	throttle, err := NewThrottle(cfg)
	if err != nil {
		return nil, nil, err
	}
	provider = ratelimit.NewProvider(provider, throttle)

	noop := func() {}
	if cfg.RedisAddr == "" || cfg.DataProvider == config.ProviderCSV {
		return provider, noop, nil
	}
	client, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn(ctx, "Redis unavailable, fetching without cache", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		return provider, noop, nil
	}
	log.Info(ctx, "Bar cache enabled", map[string]interface{}{"addr": cfg.RedisAddr, "ttl": cfg.CacheTTL.String()})
	return rediscache.New(provider, client, cfg.CacheTTL, log), func() { _ = client.Close() }, nil
}

// NewThrottle builds the request throttle for the configured provider.
// Local files are never throttled.
func NewThrottle(cfg *config.Config) (ports.Throttle, error) {
	if cfg.DataProvider == config.ProviderCSV {
		return ratelimit.None, nil
	}
	return ratelimit.New(cfg.RateLimitMode, cfg.RequestInterval)
}
