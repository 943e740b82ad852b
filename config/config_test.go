package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haBacktest/internal/adapters/logger"
	"haBacktest/internal/ports"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env file

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 89, cfg.LongEMAPeriod)
	assert.Equal(t, 21, cfg.ShortEMAPeriod)
	assert.Equal(t, "ha_close", cfg.LongEMASource)
	assert.Equal(t, 0.10, cfg.DojiBodyRatio)
	assert.Equal(t, 0.30, cfg.DojiUpperShadow)
	assert.Equal(t, 0.30, cfg.DojiLowerShadow)
	assert.Equal(t, 1.0, cfg.MinBreakoutStrength)
	assert.Equal(t, 0.02, cfg.StopLossPct)
	assert.True(t, cfg.StopLossUseMAFloor)
	assert.Equal(t, 3, cfg.LookbackMonths)
	assert.Equal(t, 36, cfg.ForwardMonths)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.RequestInterval)
	assert.Equal(t, ProviderYahoo, cfg.DataProvider)
	assert.Equal(t, ".NS", cfg.YahooSymbolSuffix)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 45*24*time.Hour, cfg.LocateTolerance())
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LONG_EMA_PERIOD", "55")
	t.Setenv("SHORT_EMA_PERIOD", "10")
	t.Setenv("LONG_EMA_SOURCE", "CLOSE")
	t.Setenv("STOP_LOSS_USE_MA_FLOOR", "false")
	t.Setenv("CHUNK_SIZE", "10")
	t.Setenv("REQUEST_INTERVAL_MS", "250")
	t.Setenv("RATE_LIMIT_MODE", "fixed_delay")
	t.Setenv("DATA_PROVIDER", "csv")
	t.Setenv("YAHOO_SYMBOL_SUFFIX", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.LongEMAPeriod)
	assert.Equal(t, 10, cfg.ShortEMAPeriod)
	assert.Equal(t, "close", cfg.LongEMASource)
	assert.False(t, cfg.StopLossUseMAFloor)
	assert.Equal(t, 10, cfg.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestInterval)
	assert.Equal(t, RateLimitFixedDelay, cfg.RateLimitMode)
	assert.Equal(t, ProviderCSV, cfg.DataProvider)
	assert.Equal(t, "", cfg.YahooSymbolSuffix)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE", "0")
	t.Setenv("WORKERS", "abc")
	t.Setenv("DATA_PROVIDER", "bloomberg")

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
	assert.Contains(t, err.Error(), "CHUNK_SIZE must be positive")
	assert.Contains(t, err.Error(), "invalid WORKERS")
	assert.Contains(t, err.Error(), "unknown DATA_PROVIDER 'bloomberg'")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "WORKERS must be positive"},
		{"negative chunk", func(c *Config) { c.ChunkSize = -1 }, "CHUNK_SIZE must be positive"},
		{"bad source", func(c *Config) { c.LongEMASource = "open" }, "LONG_EMA_SOURCE"},
		{"stop too large", func(c *Config) { c.StopLossPct = 1 }, "STOP_LOSS_PCT"},
		{"doji ratio out of range", func(c *Config) { c.DojiUpperShadow = 1.5 }, "DOJI_UPPER_SHADOW_RATIO"},
		{"unknown throttle", func(c *Config) { c.RateLimitMode = "leaky" }, "RATE_LIMIT_MODE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
