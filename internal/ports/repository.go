package ports

import (
	"context"

	"haBacktest/internal/domain"
)

// ResultRepository defines the interface for persisting backtest output.
// Each Save call must be atomic: either the whole chunk is stored or none of it.
type ResultRepository interface {
	// SaveTrades stores one chunk of trades for a run.
	SaveTrades(ctx context.Context, runID string, trades []domain.Trade) error
	// SaveSignals stores one chunk of detected signals for a run.
	SaveSignals(ctx context.Context, runID string, signals []domain.Signal) error
	// TradesByRun retrieves all trades of a run in insertion order.
	TradesByRun(ctx context.Context, runID string) ([]domain.Trade, error)
	// SignalsByRun retrieves all signals of a run in insertion order.
	SignalsByRun(ctx context.Context, runID string) ([]domain.Signal, error)
}

// ChunkSink receives whole chunks of results as they complete.
// It lets reporting (CSV batch files) hook into the batch without the core knowing about files.
type ChunkSink interface {
	WriteTradeChunk(ctx context.Context, chunk int, trades []domain.Trade) error
}
