package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"haBacktest/config"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockProvider struct {
	mu       sync.Mutex
	results  map[string]ports.FetchResult
	calls    map[string]int
	onFetch  func(symbol string) // Runs before the result is returned
	panicFor string
	clip     bool // Trim returned bars to the requested window
}

func newMockProvider() *mockProvider {
	return &mockProvider{results: make(map[string]ports.FetchResult), calls: make(map[string]int)}
}

func (m *mockProvider) FetchMonthlyBars(ctx context.Context, symbol string, start, end time.Time) ports.FetchResult {
	m.mu.Lock()
	m.calls[symbol]++
	res, ok := m.results[symbol]
	hook := m.onFetch
	m.mu.Unlock()

	if symbol == m.panicFor {
		panic("provider exploded")
	}
	if hook != nil {
		hook(symbol)
	}
	if !ok {
		return ports.FetchResult{Outcome: ports.FetchEmpty}
	}
	if m.clip && res.Outcome == ports.FetchOK {
		var bars []domain.Bar
		for _, b := range res.Bars {
			if !b.Time.Before(start) && !b.Time.After(end) {
				bars = append(bars, b)
			}
		}
		if len(bars) == 0 {
			return ports.FetchResult{Outcome: ports.FetchEmpty}
		}
		return ports.Fetched(bars)
	}
	return res
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

type mockRepo struct {
	mu          sync.Mutex
	tradeChunks [][]domain.Trade
	signals     []domain.Signal
	runIDs      []string
	saveErr     error
}

func (m *mockRepo) SaveTrades(ctx context.Context, runID string, trades []domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	chunk := make([]domain.Trade, len(trades))
	copy(chunk, trades)
	m.tradeChunks = append(m.tradeChunks, chunk)
	m.runIDs = append(m.runIDs, runID)
	return nil
}

func (m *mockRepo) SaveSignals(ctx context.Context, runID string, signals []domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.signals = append(m.signals, signals...)
	m.runIDs = append(m.runIDs, runID)
	return nil
}

func (m *mockRepo) TradesByRun(ctx context.Context, runID string) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, c := range m.tradeChunks {
		out = append(out, c...)
	}
	return out, nil
}

func (m *mockRepo) SignalsByRun(ctx context.Context, runID string) ([]domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals, nil
}

type mockSink struct {
	chunks []int
}

func (m *mockSink) WriteTradeChunk(ctx context.Context, chunk int, trades []domain.Trade) error {
	m.chunks = append(m.chunks, chunk)
	return nil
}

var errProviderDown = errors.New("503 service unavailable")

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.ChunkSize = 50
	return cfg
}

var fixtureStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// risingBars is a steady uptrend: a signal at bar 5 (high 113) enters at bar 6
// and runs to the end of its window.
func risingBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100 + 2*float64(i)
		bars[i] = domain.Bar{Time: fixtureStart.AddDate(0, i, 0), Open: c - 1, High: c + 3, Low: c - 3, Close: c}
	}
	return bars
}

// breakoutBars is a slow decline followed by one strong bar that crosses a
// 5-period EMA of HA close at the last index.
func breakoutBars() []domain.Bar {
	var bars []domain.Bar
	for i := 0; i < 12; i++ {
		c := 100 - float64(i)
		o := c + 0.5
		bars = append(bars, domain.Bar{Time: fixtureStart.AddDate(0, i, 0), Open: o, High: o + 1, Low: c - 1, Close: c})
	}
	return append(bars, domain.Bar{Time: fixtureStart.AddDate(0, 12, 0), Open: 90, High: 110, Low: 89, Close: 108})
}
