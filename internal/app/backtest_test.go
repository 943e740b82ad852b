package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
)

func newBacktest(t *testing.T, provider *mockProvider, repo *mockRepo, sinks ...ports.ChunkSink) (*BacktestService, *mockLogger) {
	t.Helper()
	log := &mockLogger{}
	svc, err := NewBacktestService(testConfig(), log, provider, repo, sinks...)
	require.NoError(t, err)
	svc.newRunID = func() string { return "run-1" }
	return svc, log
}

func TestBacktestService_Run_RecordsFailuresPerSignal(t *testing.T) {
	provider := newMockProvider()
	provider.results["TCS"] = ports.Fetched(risingBars(30))
	provider.results["ERR"] = ports.FetchError(fmt.Errorf("fetch failed: %w: %w", ports.ErrConnectionFailed, errProviderDown))
	provider.results["GONE"] = ports.FetchError(fmt.Errorf("chart: %w", ports.ErrDataUnavailable))
	repo := &mockRepo{}
	svc, log := newBacktest(t, provider, repo)

	rows := []domain.SignalRow{
		{Symbol: "TCS", Date: fixtureStart.AddDate(0, 5, 0), MarketCap: "Large Cap", Sector: "IT"},
		{Symbol: "DEAD", Date: fixtureStart},
		{Symbol: "ERR", Date: fixtureStart},
		{Symbol: "GONE", Date: fixtureStart},
		{Symbol: "TCS", Date: fixtureStart.AddDate(10, 0, 0)},
		{Symbol: "TCS", Date: fixtureStart.AddDate(0, 29, 0)},
		{Symbol: "TCS", Date: fixtureStart.AddDate(0, 31, 0)},
	}

	res, err := svc.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, res.Trades, len(rows))
	assert.Equal(t, "run-1", res.RunID)

	tcs := res.Trades[0]
	assert.Equal(t, domain.StatusCompleted, tcs.Status)
	assert.Equal(t, "TCS", tcs.Symbol)
	assert.Equal(t, "Large Cap", tcs.MarketCap)
	assert.Equal(t, 113.0, tcs.EntryPrice)
	assert.Equal(t, 4, tcs.EntryIndex, "indices are relative to the signal's window")
	assert.Equal(t, domain.ExitEndOfData, tcs.ExitReason)
	assert.Equal(t, 158.0, tcs.ExitPrice)
	assert.Equal(t, 23, tcs.MonthsHeld)
	assert.Equal(t, "run-1", tcs.RunID)

	assert.Equal(t, domain.StatusNoData, res.Trades[1].Status)
	assert.Equal(t, domain.StatusError, res.Trades[2].Status)
	assert.Contains(t, res.Trades[2].Message, "503")
	assert.Equal(t, domain.StatusNoData, res.Trades[3].Status)
	assert.Equal(t, domain.StatusNoData, res.Trades[4].Status, "no bars inside the signal's window")
	assert.Equal(t, domain.StatusNoEntry, res.Trades[5].Status)
	assert.Equal(t, domain.StatusNoSignalCandle, res.Trades[6].Status)

	assert.Equal(t, 1, provider.callCount("TCS"), "one fetch per symbol per chunk")
	assert.Equal(t, 1, res.Summary.Completed)
	assert.Equal(t, 6, res.Summary.Failed)
	assert.Equal(t, 1, res.ChunksPersisted)
	assert.NotEmpty(t, log.warnMsgs)
}

func TestBacktestService_Run_PersistsEachChunkInOrder(t *testing.T) {
	provider := newMockProvider()
	provider.results["A"] = ports.Fetched(risingBars(30))
	provider.results["B"] = ports.Fetched(risingBars(30))
	repo := &mockRepo{}
	sink := &mockSink{}
	svc, _ := newBacktest(t, provider, repo, sink)
	svc.cfg.ChunkSize = 2

	rows := []domain.SignalRow{
		{Symbol: "A", Date: fixtureStart.AddDate(0, 5, 0)},
		{Symbol: "A", Date: fixtureStart.AddDate(0, 29, 0)},
		{Symbol: "B", Date: fixtureStart.AddDate(0, 5, 0)},
		{Symbol: "A", Date: fixtureStart.AddDate(0, 5, 0)},
		{Symbol: "B", Date: fixtureStart.AddDate(0, 29, 0)},
	}

	res, err := svc.Run(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunksTotal)
	assert.Equal(t, 3, res.ChunksPersisted)
	assert.Equal(t, []int{1, 2, 3}, sink.chunks)

	require.Len(t, repo.tradeChunks, 3)
	assert.Len(t, repo.tradeChunks[0], 2)
	assert.Len(t, repo.tradeChunks[1], 2)
	assert.Len(t, repo.tradeChunks[2], 1)
	assert.Equal(t, []string{"run-1", "run-1", "run-1"}, repo.runIDs)

	var symbols []string
	for _, tr := range res.Trades {
		symbols = append(symbols, tr.Symbol)
	}
	assert.Equal(t, []string{"A", "A", "B", "A", "B"}, symbols)
	assert.Equal(t, domain.StatusNoEntry, res.Trades[1].Status)
	assert.Equal(t, domain.StatusCompleted, res.Trades[3].Status)

	assert.Equal(t, 2, provider.callCount("A"))
	assert.Equal(t, 2, provider.callCount("B"))
}

func TestBacktestService_Run_TradeIndependentOfChunkSize(t *testing.T) {
	rows := []domain.SignalRow{
		{Symbol: "TCS", Date: fixtureStart.AddDate(0, 5, 0)},
		{Symbol: "TCS", Date: fixtureStart.AddDate(0, 60, 0)},
	}

	run := func(chunkSize int) []domain.Trade {
		provider := newMockProvider()
		provider.clip = true
		provider.results["TCS"] = ports.Fetched(risingBars(120))
		svc, _ := newBacktest(t, provider, &mockRepo{})
		svc.cfg.ChunkSize = chunkSize
		res, err := svc.Run(context.Background(), rows)
		require.NoError(t, err)
		require.Len(t, res.Trades, len(rows))
		return res.Trades
	}

	single := run(1)
	shared := run(2)

	first := single[0]
	assert.Equal(t, domain.StatusCompleted, first.Status)
	assert.Equal(t, domain.ExitEndOfData, first.ExitReason)
	assert.Equal(t, 35, first.MonthsHeld)
	assert.Equal(t, fixtureStart.AddDate(0, 41, 0), first.ExitDate)
	assert.Equal(t, first, shared[0], "a shared fetch must not widen the first signal's window")
	assert.Equal(t, single[1], shared[1])
}

func TestBacktestService_Run_CancellationKeepsPersistedChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newMockProvider()
	for _, s := range []string{"A", "B", "C"} {
		provider.results[s] = ports.Fetched(risingBars(30))
	}
	provider.onFetch = func(symbol string) {
		if symbol == "B" {
			cancel()
		}
	}
	repo := &mockRepo{}
	svc, _ := newBacktest(t, provider, repo)
	svc.cfg.ChunkSize = 1

	rows := []domain.SignalRow{
		{Symbol: "A", Date: fixtureStart.AddDate(0, 5, 0)},
		{Symbol: "B", Date: fixtureStart.AddDate(0, 5, 0)},
		{Symbol: "C", Date: fixtureStart.AddDate(0, 5, 0)},
	}

	res, err := svc.Run(ctx, rows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ChunksPersisted)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "A", res.Trades[0].Symbol)
	require.Len(t, repo.tradeChunks, 1)
	assert.Equal(t, 0, provider.callCount("C"))
}

func TestBacktestService_Run_RecoversPanics(t *testing.T) {
	provider := newMockProvider()
	provider.results["OK"] = ports.Fetched(risingBars(30))
	provider.panicFor = "BAD"
	repo := &mockRepo{}
	svc, log := newBacktest(t, provider, repo)

	res, err := svc.Run(context.Background(), []domain.SignalRow{
		{Symbol: "BAD", Date: fixtureStart},
		{Symbol: "OK", Date: fixtureStart.AddDate(0, 5, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, res.Trades[0].Status)
	assert.Contains(t, res.Trades[0].Message, "provider exploded")
	assert.Equal(t, domain.StatusCompleted, res.Trades[1].Status)
	assert.Contains(t, log.errorMsgs, "Simulation panicked")
}

func TestBacktestService_Run_PersistFailureAborts(t *testing.T) {
	provider := newMockProvider()
	repo := &mockRepo{saveErr: ports.ErrQueryFailed}
	svc, _ := newBacktest(t, provider, repo)

	res, err := svc.Run(context.Background(), []domain.SignalRow{{Symbol: "X", Date: fixtureStart}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	assert.Zero(t, res.ChunksPersisted)
	assert.Empty(t, res.Trades)
}

func TestBacktestService_Run_Empty(t *testing.T) {
	svc, _ := newBacktest(t, newMockProvider(), &mockRepo{})
	res, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Zero(t, res.Summary.TotalSignals)
}

func TestNewBacktestService_ConfigErrors(t *testing.T) {
	log := &mockLogger{}
	repo := &mockRepo{}
	provider := newMockProvider()

	cfg := testConfig()
	cfg.ChunkSize = 0
	_, err := NewBacktestService(cfg, log, provider, repo)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	cfg = testConfig()
	cfg.Workers = -1
	_, err = NewBacktestService(cfg, log, provider, repo)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewBacktestService(testConfig(), log, nil, repo)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
