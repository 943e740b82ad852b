package indicators

import (
	"context"

	"haBacktest/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the latest indicator value for the given bars
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// Series computes the indicator at every index of values
	Series(ctx context.Context, values []float64) ([]float64, error)

	// RequiredDataPoints returns the minimum number of values needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of values needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// PriceSource selects which price column an indicator is computed on.
type PriceSource string

const (
	SourceClose   PriceSource = "close"
	SourceHAClose PriceSource = "ha_close"
)

// ParsePriceSource validates a price source name.
func ParsePriceSource(s string) (PriceSource, bool) {
	switch PriceSource(s) {
	case SourceClose, SourceHAClose:
		return PriceSource(s), true
	default:
		return "", false
	}
}

// Closes extracts the regular close column.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// HACloses extracts the Heikin-Ashi close column.
func HACloses(habars []domain.HABar) []float64 {
	out := make([]float64, len(habars))
	for i, b := range habars {
		out[i] = b.HAClose
	}
	return out
}

// Column extracts the price column named by src from transformed bars.
func Column(habars []domain.HABar, src PriceSource) []float64 {
	if src == SourceHAClose {
		return HACloses(habars)
	}
	out := make([]float64, len(habars))
	for i, b := range habars {
		out[i] = b.Close
	}
	return out
}
