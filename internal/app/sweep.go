package app

import (
	"context"
	"fmt"
	"time"

	"haBacktest/config"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
	"haBacktest/internal/strategy/backtesting"
	"haBacktest/internal/strategy/optimization"
)

// SweepResult is the outcome of a stop-policy sweep.
type SweepResult struct {
	Results  []optimization.OptimizationResult // Best score first
	Cases    int                               // Signals simulated under every combination
	Skipped  int                               // Signals without usable bars in their window
	Duration time.Duration
}

// SweepService re-simulates a signal list under a grid of stop-loss settings.
// Each signal's series is prepared once and shared by every combination.
type SweepService struct {
	cfg     *config.Config
	logger  ports.Logger
	fetcher *fetcher
}

// NewSweepService creates a new sweep service.
func NewSweepService(
	cfg *config.Config,
	logger ports.Logger,
	provider ports.BarProvider,
) (*SweepService, error) {
	if cfg == nil || logger == nil || provider == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for SweepService", ports.ErrConfigurationError)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SweepService{
		cfg:     cfg,
		logger:  logger,
		fetcher: &fetcher{provider: provider, logger: logger},
	}, nil
}

// Sweep fetches the bars for rows and ranks every combination of ranges.
func (s *SweepService) Sweep(ctx context.Context, rows []domain.SignalRow, ranges []optimization.ParameterRange) (*SweepResult, error) {
	started := time.Now()
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: ranges,
		Base: backtesting.SimulatorConfig{
			StopLossPct:        s.cfg.StopLossPct,
			StopLossUseMAFloor: s.cfg.StopLossUseMAFloor,
		},
		LocateTolerance: s.cfg.LocateTolerance(),
		Workers:         s.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}

	jobs := groupBySymbol(rows, s.cfg.LookbackMonths, s.cfg.ForwardMonths)
	bars := make([][]domain.Bar, len(jobs))
	if err := forEachLimited(ctx, s.cfg.Workers, len(jobs), func(i int) {
		bars[i] = s.fetch(ctx, jobs[i])
	}); err != nil {
		return nil, err
	}

	// Cases keep input order so results do not depend on fetch timing.
	caseAt := make([]*optimization.Case, len(rows))
	result := &SweepResult{}
	for i, job := range jobs {
		for _, pos := range job.positions {
			if bars[i] == nil {
				result.Skipped++
				continue
			}
			series, failure := prepareRow(s.cfg, rows[pos], bars[i])
			if failure != nil {
				s.logger.Warn(ctx, "Skipping signal without usable bars", map[string]interface{}{
					"symbol":     job.symbol,
					"signalDate": rows[pos].Date.Format("2006-01-02"),
					"error":      failure.message,
				})
				result.Skipped++
				continue
			}
			caseAt[pos] = &optimization.Case{Row: rows[pos], Series: series}
		}
	}
	cases := make([]optimization.Case, 0, len(rows))
	for _, c := range caseAt {
		if c != nil {
			cases = append(cases, *c)
		}
	}
	result.Cases = len(cases)

	s.logger.Info(ctx, "Starting stop-policy sweep", map[string]interface{}{
		"cases":   result.Cases,
		"skipped": result.Skipped,
		"ranges":  len(ranges),
	})
	result.Results, err = opt.Optimize(ctx, cases)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(started)
	s.logger.Info(ctx, "Stop-policy sweep finished", map[string]interface{}{
		"combinations": len(result.Results),
		"duration":     result.Duration.String(),
	})
	return result, nil
}

func (s *SweepService) fetch(ctx context.Context, job *symbolJob) []domain.Bar {
	bars, failure := s.fetcher.fetch(ctx, job.symbol, job.start, job.end)
	if failure != nil {
		s.logger.Warn(ctx, "Skipping symbol without usable bars", map[string]interface{}{
			"symbol": job.symbol,
			"status": string(failure.status),
		})
		return nil
	}
	return bars
}
