package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
)

func newScanner(t *testing.T, provider *mockProvider, repo *mockRepo) (*ScanService, *mockLogger) {
	t.Helper()
	cfg := testConfig()
	cfg.LongEMAPeriod = 5
	log := &mockLogger{}
	svc, err := NewScanService(cfg, log, provider, repo)
	require.NoError(t, err)
	svc.newRunID = func() string { return "scan-1" }
	svc.now = func() time.Time { return fixtureStart.AddDate(1, 1, 0) }
	return svc, log
}

func TestScanService_Scan(t *testing.T) {
	provider := newMockProvider()
	provider.results["GOOD"] = ports.Fetched(breakoutBars())
	provider.results["SHORT"] = ports.Fetched(breakoutBars()[:3])
	provider.results["DOWN"] = ports.FetchError(ports.ErrConnectionFailed)
	repo := &mockRepo{}
	svc, log := newScanner(t, provider, repo)

	universe := []domain.Instrument{
		{Symbol: "GOOD", MarketCap: "Mid Cap", Sector: "Pharma"},
		{Symbol: "SHORT", MarketCap: "Small Cap", Sector: "IT"},
		{Symbol: "DOWN", MarketCap: "Large Cap", Sector: "Energy"},
		{Symbol: "MISSING", MarketCap: "Large Cap", Sector: "Energy"},
	}

	res, err := svc.Scan(context.Background(), universe)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", res.RunID)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.InsufficientHistory)

	require.Len(t, res.Signals, 1)
	sig := res.Signals[0]
	assert.Equal(t, "GOOD", sig.Symbol)
	assert.Equal(t, 12, sig.BarIndex)
	assert.Equal(t, fixtureStart.AddDate(0, 12, 0), sig.Date)
	assert.Equal(t, "Mid Cap", sig.MarketCap)
	assert.Equal(t, "Pharma", sig.Sector)
	assert.Equal(t, 110.0, sig.High)
	assert.Equal(t, 108.0, sig.Close)
	assert.InDelta(t, 99.25, sig.HAClose, 1e-9)
	assert.InDelta(t, 5.696, sig.BreakoutStrength, 1e-3)

	assert.Equal(t, res.Signals, repo.signals)
	assert.Equal(t, []string{"scan-1"}, repo.runIDs)
	assert.Contains(t, log.debugMsgs, "Not enough history for detection")
}

func TestScanService_LongEMAOnClose(t *testing.T) {
	provider := newMockProvider()
	provider.results["GOOD"] = ports.Fetched(breakoutBars())
	repo := &mockRepo{}
	svc, _ := newScanner(t, provider, repo)
	svc.source = "close"

	res, err := svc.Scan(context.Background(), []domain.Instrument{{Symbol: "GOOD"}})
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.InDelta(t, 96.651, res.Signals[0].LongEMA, 1e-3)
	assert.InDelta(t, 2.689, res.Signals[0].BreakoutStrength, 1e-3)
	assert.Equal(t, 1, res.Scanned)
}

func TestScanService_Canceled(t *testing.T) {
	provider := newMockProvider()
	provider.results["GOOD"] = ports.Fetched(breakoutBars())
	repo := &mockRepo{}
	svc, _ := newScanner(t, provider, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Scan(ctx, []domain.Instrument{{Symbol: "GOOD"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Signals)
	assert.Empty(t, repo.signals)
}

func TestSortSignalsAndRows(t *testing.T) {
	d := func(m int) time.Time { return fixtureStart.AddDate(0, m, 0) }
	sigs := []domain.Signal{
		{Symbol: "B", Date: d(1)},
		{Symbol: "A", Date: d(3)},
		{Symbol: "A", Date: d(1)},
	}
	SortSignals(sigs)
	assert.Equal(t, "A", sigs[0].Symbol)
	assert.Equal(t, d(3), sigs[0].Date)
	assert.Equal(t, "A", sigs[1].Symbol)
	assert.Equal(t, "B", sigs[2].Symbol)

	rows := SignalRows(sigs)
	require.Len(t, rows, 3)
	assert.Equal(t, d(1), rows[0].Date)
	assert.Equal(t, d(3), rows[2].Date)
}

func TestScanService_Scan_LogsWhyLatestBarFailed(t *testing.T) {
	provider := newMockProvider()
	provider.results["TREND"] = ports.Fetched(risingBars(30))
	svc, log := newScanner(t, provider, &mockRepo{})

	_, err := svc.Scan(context.Background(), []domain.Instrument{{Symbol: "TREND"}})
	require.NoError(t, err)
	assert.Contains(t, log.debugMsgs, "Latest bar is not a breakout")
}
