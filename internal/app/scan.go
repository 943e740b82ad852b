package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"haBacktest/config"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
	"haBacktest/internal/strategy/indicators"
	"haBacktest/internal/strategy/signals"
)

// ScanResult is the outcome of a universe scan.
type ScanResult struct {
	RunID               string
	Signals             []domain.Signal // Newest first
	Scanned             int
	Failed              int // Symbols without usable bars
	InsufficientHistory int // Symbols too short for the long EMA guard
	Duration            time.Duration
}

// ScanService runs the breakout detector over a universe of instruments.
type ScanService struct {
	cfg      *config.Config
	logger   ports.Logger
	fetcher  *fetcher
	repo     ports.ResultRepository
	detector *signals.Detector
	longEMA  *indicators.MovingAverage
	source   indicators.PriceSource
	now      func() time.Time
	newRunID func() string
}

// NewScanService creates a new scanner.
func NewScanService(
	cfg *config.Config,
	logger ports.Logger,
	provider ports.BarProvider,
	repo ports.ResultRepository,
) (*ScanService, error) {
	if cfg == nil || logger == nil || provider == nil || repo == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for ScanService", ports.ErrConfigurationError)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	det, err := signals.NewDetector(signals.DetectorConfig{
		LongPeriod:          cfg.LongEMAPeriod,
		MinBreakoutStrength: cfg.MinBreakoutStrength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	src, ok := indicators.ParsePriceSource(cfg.LongEMASource)
	if !ok {
		return nil, fmt.Errorf("%w: unknown long EMA source '%s'", ports.ErrConfigurationError, cfg.LongEMASource)
	}

	longEMA := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.LongEMAPeriod},
		Type:            indicators.ExponentialMovingAverage,
	})

	return &ScanService{
		cfg:      cfg,
		logger:   logger,
		fetcher:  &fetcher{provider: provider, logger: logger},
		repo:     repo,
		detector: det,
		longEMA:  longEMA,
		source:   src,
		now:      time.Now,
		newRunID: uuid.NewString,
	}, nil
}

type scanOutcome struct {
	signals      []domain.Signal
	failed       bool
	insufficient bool
}

// Scan fetches ScanYears of monthly history per instrument and detects every breakout.
// Signals are persisted chunk by chunk; on cancellation the partial result is returned.
func (s *ScanService) Scan(ctx context.Context, universe []domain.Instrument) (*ScanResult, error) {
	started := time.Now()
	result := &ScanResult{RunID: s.newRunID()}
	end := s.now()
	start := end.AddDate(-s.cfg.ScanYears, 0, 0)

	s.logger.Info(ctx, "Starting signal scan", map[string]interface{}{
		"runID":       result.RunID,
		"instruments": len(universe),
		"from":        start.Format("2006-01-02"),
		"to":          end.Format("2006-01-02"),
	})

	var scanErr error
	for lo := 0; lo < len(universe); lo += s.cfg.ChunkSize {
		hi := lo + s.cfg.ChunkSize
		if hi > len(universe) {
			hi = len(universe)
		}
		batch := universe[lo:hi]
		outcomes := make([]scanOutcome, len(batch))

		if err := forEachLimited(ctx, s.cfg.Workers, len(batch), func(i int) {
			outcomes[i] = s.scanInstrument(ctx, batch[i], start, end)
		}); err != nil {
			scanErr = err
			break
		}

		var found []domain.Signal
		for _, o := range outcomes {
			result.Scanned++
			if o.failed {
				result.Failed++
			}
			if o.insufficient {
				result.InsufficientHistory++
			}
			found = append(found, o.signals...)
		}
		if len(found) > 0 {
			if err := s.repo.SaveSignals(context.WithoutCancel(ctx), result.RunID, found); err != nil {
				s.logger.Error(ctx, err, "Failed to persist signals", map[string]interface{}{"runID": result.RunID})
				scanErr = fmt.Errorf("persist signals: %w", err)
				break
			}
		}
		result.Signals = append(result.Signals, found...)
	}

	SortSignals(result.Signals)
	result.Duration = time.Since(started)
	s.logger.Info(ctx, "Signal scan finished", map[string]interface{}{
		"runID":        result.RunID,
		"scanned":      result.Scanned,
		"signals":      len(result.Signals),
		"failed":       result.Failed,
		"insufficient": result.InsufficientHistory,
		"duration":     result.Duration.String(),
	})
	return result, scanErr
}

func (s *ScanService) scanInstrument(ctx context.Context, inst domain.Instrument, start, end time.Time) (out scanOutcome) {
	defer func() {
		if err := recoverAsError(recover()); err != nil {
			s.logger.Error(ctx, err, "Scan panicked", map[string]interface{}{"symbol": inst.Symbol})
			out = scanOutcome{failed: true}
		}
	}()

	bars, failure := s.fetcher.fetch(ctx, inst.Symbol, start, end)
	if failure != nil {
		s.logger.Warn(ctx, "Skipping instrument without bars", map[string]interface{}{
			"symbol": inst.Symbol,
			"error":  failure.message,
		})
		return scanOutcome{failed: true}
	}
	if len(bars) < s.detector.MinBars() {
		s.logger.Debug(ctx, "Not enough history for detection", map[string]interface{}{
			"symbol":   inst.Symbol,
			"bars":     len(bars),
			"required": s.detector.MinBars(),
			"error":    ports.ErrInsufficientHistory.Error(),
		})
		return scanOutcome{insufficient: true}
	}

	habars := indicators.HeikinAshi(bars, dojiThresholds(s.cfg))
	longEMA, err := s.longEMA.Series(ctx, indicators.Column(habars, s.source))
	if err != nil {
		s.logger.Error(ctx, err, "Failed to compute long EMA", map[string]interface{}{"symbol": inst.Symbol, "indicator": s.longEMA.Name()})
		return scanOutcome{failed: true}
	}

	found := s.detector.Scan(inst.Symbol, habars, longEMA)
	if latest := s.detector.Inspect(habars, longEMA, len(habars)-1); !latest.Passed() {
		s.logger.Debug(ctx, "Latest bar is not a breakout", map[string]interface{}{
			"symbol":   inst.Symbol,
			"date":     habars[len(habars)-1].Time.Format("2006-01-02"),
			"failed":   latest.Failed(),
			"strength": latest.BreakoutStrength,
		})
	}
	for i := range found {
		found[i].MarketCap = inst.MarketCap
		found[i].Sector = inst.Sector
	}
	if len(found) > 0 {
		s.logger.Debug(ctx, "Signals detected", map[string]interface{}{"symbol": inst.Symbol, "count": len(found)})
	}
	return scanOutcome{signals: found}
}

// SortSignals orders signals newest first, then by symbol.
func SortSignals(sigs []domain.Signal) {
	sort.SliceStable(sigs, func(i, j int) bool {
		if !sigs[i].Date.Equal(sigs[j].Date) {
			return sigs[i].Date.After(sigs[j].Date)
		}
		return sigs[i].Symbol < sigs[j].Symbol
	})
}

// SignalRows converts detected signals into backtest input, oldest first.
func SignalRows(sigs []domain.Signal) []domain.SignalRow {
	rows := make([]domain.SignalRow, len(sigs))
	for i, sig := range sigs {
		rows[i] = sig.Row()
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}
