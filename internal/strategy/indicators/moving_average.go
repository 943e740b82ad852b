package indicators

import (
	"context"
	"fmt"

	"haBacktest/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("%s%d", m.config.Type, m.Config.Period)
}

// Series computes the moving average at every index of values.
func (m *MovingAverage) Series(ctx context.Context, values []float64) ([]float64, error) {
	switch m.config.Type {
	case SimpleMovingAverage:
		return SMA(values, m.Config.Period)
	case ExponentialMovingAverage:
		return EMA(values, m.Config.Period)
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// Calculate computes the moving average of the bars' closes at the last bar.
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	if len(bars) == 0 {
		return 0, fmt.Errorf("no data to calculate %s", m.Name())
	}
	series, err := m.Series(ctx, Closes(bars))
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
