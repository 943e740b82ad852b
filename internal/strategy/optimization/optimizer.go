package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"haBacktest/internal/domain"
	"haBacktest/internal/strategy/analytics"
	"haBacktest/internal/strategy/backtesting"
)

// Parameter names understood by the optimizer.
const (
	ParamStopLossPct = "stop_loss_pct"
	ParamMAFloor     = "ma_floor" // 0 or 1
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Case is one signal together with the series prepared over its own window.
// Series are read-only and shared by every combination.
type Case struct {
	Row    domain.SignalRow
	Series backtesting.Series
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Summary    *analytics.Summary
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Base            backtesting.SimulatorConfig // Values for parameters not being swept
	LocateTolerance time.Duration
	Workers         int
	ScoreFunction   func(*analytics.Summary) float64
}

// Optimizer grid-searches the trade management parameters over a fixed set of signals.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	for _, r := range config.ParameterRanges {
		switch r.Name {
		case ParamStopLossPct, ParamMAFloor:
		default:
			return nil, fmt.Errorf("unknown parameter '%s'", r.Name)
		}
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("invalid range for '%s': min=%.4f max=%.4f step=%.4f", r.Name, r.Min, r.Max, r.Step)
		}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config}, nil
}

// Optimize simulates every case under each parameter combination and returns
// the results best score first. Combinations with an invalid simulator
// configuration are skipped.
func (o *Optimizer) Optimize(ctx context.Context, cases []Case) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)
	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sim, err := o.createSimulatorWithParams(params)
			if err != nil {
				return nil
			}

			trades := make([]domain.Trade, len(cases))
			for k, c := range cases {
				trades[k] = sim.SimulateRow(c.Row, c.Series, o.config.LocateTolerance)
			}
			summary := analytics.Summarize(trades)
			slots[i] = &OptimizationResult{
				Parameters: params,
				Summary:    summary,
				Score:      o.config.ScoreFunction(summary),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	var currentCombination map[string]float64

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			// Create a copy of the current combination
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for n := 0; n <= steps; n++ {
			value := param.Min + float64(n)*param.Step
			if param.IsInt {
				value = math.Round(value)
			} else {
				value = math.Round(value*1e6) / 1e6
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	currentCombination = make(map[string]float64)
	generate(0)
	return combinations
}

// createSimulatorWithParams overlays params on the base simulator configuration.
func (o *Optimizer) createSimulatorWithParams(params map[string]float64) (*backtesting.Simulator, error) {
	cfg := o.config.Base
	if v, ok := params[ParamStopLossPct]; ok {
		cfg.StopLossPct = v
	}
	if v, ok := params[ParamMAFloor]; ok {
		cfg.StopLossUseMAFloor = v >= 0.5
	}
	return backtesting.NewSimulator(cfg)
}

// sortResultsByScore sorts optimization results by score in descending order.
// Equal scores keep generation order.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction combines several summary metrics into a single score.
func DefaultScoreFunction(s *analytics.Summary) float64 {
	if s.Completed == 0 {
		return 0
	}
	score := 0.0

	// Weight different metrics
	score += s.WinRate * 0.3
	score += math.Min(s.ProfitFactor, 10) / 10 * 0.2
	score += s.Expectancy / 100 * 0.3
	score -= s.Drawdown.Mean / 100 * 0.2

	return score
}
