package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"haBacktest/config"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
	"haBacktest/internal/strategy/analytics"
	"haBacktest/internal/strategy/backtesting"
)

// RunResult is the outcome of a backtest batch.
type RunResult struct {
	RunID           string
	Trades          []domain.Trade // Persisted trades in input order
	Summary         *analytics.Summary
	ChunksPersisted int
	ChunksTotal     int
	Duration        time.Duration
}

// BacktestService simulates pre-detected signals in chunks and persists each chunk.
type BacktestService struct {
	cfg       *config.Config
	logger    ports.Logger
	fetcher   *fetcher
	repo      ports.ResultRepository
	sinks     []ports.ChunkSink
	simulator *backtesting.Simulator
	newRunID  func() string
}

// NewBacktestService creates a new backtest orchestrator.
func NewBacktestService(
	cfg *config.Config,
	logger ports.Logger,
	provider ports.BarProvider,
	repo ports.ResultRepository,
	sinks ...ports.ChunkSink,
) (*BacktestService, error) {
	// Validate dependencies
	if cfg == nil || logger == nil || provider == nil || repo == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for BacktestService", ports.ErrConfigurationError)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sim, err := backtesting.NewSimulator(backtesting.SimulatorConfig{
		StopLossPct:        cfg.StopLossPct,
		StopLossUseMAFloor: cfg.StopLossUseMAFloor,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}

	return &BacktestService{
		cfg:       cfg,
		logger:    logger,
		fetcher:   &fetcher{provider: provider, logger: logger},
		repo:      repo,
		sinks:     sinks,
		simulator: sim,
		newRunID:  uuid.NewString,
	}, nil
}

// Run simulates every row and returns the persisted trades in input order.
// Per-signal failures are recorded as trade statuses and never abort the run.
// On cancellation the in-flight chunk is discarded, already persisted chunks
// stay intact, and the partial result is returned with the context error.
func (s *BacktestService) Run(ctx context.Context, rows []domain.SignalRow) (*RunResult, error) {
	started := time.Now()
	runID := s.newRunID()
	chunkSize := s.cfg.ChunkSize
	totalChunks := (len(rows) + chunkSize - 1) / chunkSize

	result := &RunResult{RunID: runID, ChunksTotal: totalChunks}
	s.logger.Info(ctx, "Starting backtest run", map[string]interface{}{
		"runID":     runID,
		"signals":   len(rows),
		"chunks":    totalChunks,
		"chunkSize": chunkSize,
		"workers":   s.cfg.Workers,
	})

	for chunk := 0; chunk < totalChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, result, started, err)
		}

		lo := chunk * chunkSize
		hi := lo + chunkSize
		if hi > len(rows) {
			hi = len(rows)
		}

		trades, err := s.runChunk(ctx, rows[lo:hi])
		if err != nil {
			s.logger.Warn(ctx, "Backtest interrupted; discarding in-flight chunk", map[string]interface{}{
				"runID": runID,
				"chunk": chunk + 1,
			})
			return s.finish(ctx, result, started, err)
		}
		for i := range trades {
			trades[i].RunID = runID
		}

		if err := s.persist(ctx, runID, chunk+1, trades); err != nil {
			return s.finish(ctx, result, started, err)
		}
		result.Trades = append(result.Trades, trades...)
		result.ChunksPersisted++

		s.logger.Info(ctx, "Chunk persisted", map[string]interface{}{
			"runID":  runID,
			"chunk":  chunk + 1,
			"of":     totalChunks,
			"trades": len(trades),
		})
	}

	return s.finish(ctx, result, started, nil)
}

func (s *BacktestService) finish(ctx context.Context, result *RunResult, started time.Time, err error) (*RunResult, error) {
	result.Summary = analytics.Summarize(result.Trades)
	result.Duration = time.Since(started)
	s.logger.Info(ctx, "Backtest run finished", map[string]interface{}{
		"runID":       result.RunID,
		"persisted":   result.ChunksPersisted,
		"completed":   result.Summary.Completed,
		"failed":      result.Summary.Failed,
		"duration":    result.Duration.String(),
		"interrupted": err != nil,
	})
	return result, err
}

// runChunk simulates one chunk. Each worker writes only its own rows' positions.
func (s *BacktestService) runChunk(ctx context.Context, rows []domain.SignalRow) ([]domain.Trade, error) {
	trades := make([]domain.Trade, len(rows))
	jobs := groupBySymbol(rows, s.cfg.LookbackMonths, s.cfg.ForwardMonths)

	err := forEachLimited(ctx, s.cfg.Workers, len(jobs), func(i int) {
		s.runSymbol(ctx, jobs[i], rows, trades)
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (s *BacktestService) runSymbol(ctx context.Context, job *symbolJob, rows []domain.SignalRow, out []domain.Trade) {
	defer func() {
		if err := recoverAsError(recover()); err != nil {
			s.logger.Error(ctx, err, "Simulation panicked", map[string]interface{}{"symbol": job.symbol})
			for _, pos := range job.positions {
				out[pos] = failedTrade(rows[pos], domain.StatusError, err.Error())
			}
		}
	}()

	bars, failure := s.fetcher.fetch(ctx, job.symbol, job.start, job.end)
	if failure != nil {
		s.logger.Warn(ctx, "No usable bars for symbol", map[string]interface{}{
			"symbol": job.symbol,
			"status": string(failure.status),
			"error":  failure.message,
		})
		for _, pos := range job.positions {
			out[pos] = failedTrade(rows[pos], failure.status, failure.message)
		}
		return
	}

	for _, pos := range job.positions {
		series, failure := prepareRow(s.cfg, rows[pos], bars)
		if failure != nil {
			out[pos] = failedTrade(rows[pos], failure.status, failure.message)
			continue
		}
		t := s.simulator.SimulateRow(rows[pos], series, s.cfg.LocateTolerance())
		s.logger.Debug(ctx, "Simulated signal", map[string]interface{}{
			"symbol":     t.Symbol,
			"signalDate": t.SignalDate.Format("2006-01-02"),
			"status":     string(t.Status),
			"exitReason": string(t.ExitReason),
		})
		out[pos] = t
	}
}

// persist stores a chunk in the repository and every sink. The write is detached
// from ctx so an interrupt cannot cut a chunk in half.
func (s *BacktestService) persist(ctx context.Context, runID string, chunk int, trades []domain.Trade) error {
	wctx := context.WithoutCancel(ctx)
	if err := s.repo.SaveTrades(wctx, runID, trades); err != nil {
		s.logger.Error(ctx, err, "Failed to persist chunk", map[string]interface{}{"runID": runID, "chunk": chunk})
		return fmt.Errorf("persist chunk %d: %w", chunk, err)
	}
	for _, sink := range s.sinks {
		if err := sink.WriteTradeChunk(wctx, chunk, trades); err != nil {
			s.logger.Error(ctx, err, "Failed to write chunk report", map[string]interface{}{"runID": runID, "chunk": chunk})
			return fmt.Errorf("write chunk %d: %w", chunk, err)
		}
	}
	return nil
}

func failedTrade(row domain.SignalRow, status domain.TradeStatus, msg string) domain.Trade {
	return domain.Trade{
		Symbol:     row.Symbol,
		SignalDate: row.Date,
		MarketCap:  row.MarketCap,
		Sector:     row.Sector,
		Status:     status,
		Message:    msg,
	}
}
