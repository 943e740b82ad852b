package bootstrap

import (
	"context"
	"os"
	"testing"
	"time"

	"haBacktest/config"
	"haBacktest/internal/adapters/logger"
	"haBacktest/internal/app"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
	"haBacktest/internal/ratelimit"
	"haBacktest/internal/strategy/analytics"
	"haBacktest/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	cfg := config.Default()

	l, flush, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.IsType(t, &logger.StdLogger{}, l)
	flush()

	cfg.LogFormat = "json"
	l, flush, err = NewLogger(cfg)
	require.NoError(t, err)
	assert.IsType(t, &logger.ZapLogger{}, l)
	flush()
}

func TestNewProvider(t *testing.T) {
	log := logger.NewStdLogger(logger.LevelError)
	ctx := context.Background()

	tests := []struct {
		provider string
		wantName string
	}{
		{config.ProviderYahoo, "yahoo"},
		{config.ProviderBinance, "binance"},
		{config.ProviderCSV, "csv"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.DataProvider = tt.provider
			cfg.CSVDataDir = t.TempDir()

			p, closeFn, err := NewProvider(ctx, cfg, log)
			require.NoError(t, err)
			defer closeFn()
			assert.Equal(t, tt.wantName, p.Name())
			assert.IsType(t, &ratelimit.Provider{}, p)
		})
	}

	cfg := config.Default()
	cfg.DataProvider = "bloomberg"
	_, _, err := NewProvider(ctx, cfg, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	cfg = config.Default()
	cfg.RateLimitMode = "leaky"
	_, _, err = NewProvider(ctx, cfg, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestNewProvider_UnreachableRedisFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.RedisAddr = "127.0.0.1:1"

	p, closeFn, err := NewProvider(context.Background(), cfg, logger.NewStdLogger(logger.LevelError))
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "yahoo", p.Name())
}

func TestNewThrottle(t *testing.T) {
	cfg := config.Default()
	th, err := NewThrottle(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.TokenBucket{}, th)

	cfg.DataProvider = config.ProviderCSV
	th, err = NewThrottle(cfg)
	require.NoError(t, err)
	assert.Equal(t, ratelimit.None, th)
}

func TestWriteBacktestReports(t *testing.T) {
	dir := t.TempDir()
	trades := []domain.Trade{{Symbol: "ABC", SignalDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Status: domain.StatusNoData}}
	res := &app.RunResult{RunID: "run-1", Trades: trades, Summary: analytics.Summarize(trades)}

	out, err := WriteBacktestReports(dir, "signals.csv", res)
	require.NoError(t, err)

	got, err := utils.ReadTradesFromCSV(out.TradesPath)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	md, err := os.ReadFile(out.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "run-1")
}

func TestWriteScanReport(t *testing.T) {
	res := &app.ScanResult{Signals: []domain.Signal{{Symbol: "ABC", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}}}
	path, err := WriteScanReport(t.TempDir(), res)
	require.NoError(t, err)

	rows, err := utils.ReadSignalRowsFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "ABC", rows[0].Symbol)
}
