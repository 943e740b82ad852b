package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haBacktest/internal/domain"
	"haBacktest/internal/strategy/indicators"
)

// breakoutFixture builds 90 bars where index 89 satisfies all seven conditions
// against a flat EMA of 100.
func breakoutFixture() ([]domain.HABar, []float64) {
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	habars := make([]domain.HABar, 90)
	ema := make([]float64, 90)
	for i := range habars {
		habars[i] = domain.HABar{
			Bar:     domain.Bar{Time: start.AddDate(0, i, 0), Open: 95, High: 97, Low: 93, Close: 95},
			HAOpen:  95,
			HAClose: 95,
		}
		ema[i] = 100
	}
	habars[88].HAClose = 96
	habars[89].HAOpen = 99
	habars[89].HAClose = 103
	habars[89].High = 108
	habars[89].Close = 104
	return habars, ema
}

func newDetector(t *testing.T, cfg DetectorConfig) *Detector {
	t.Helper()
	d, err := NewDetector(cfg)
	require.NoError(t, err)
	return d
}

func TestDetector_Evaluate_AllConditions(t *testing.T) {
	habars, ema := breakoutFixture()
	d := newDetector(t, DefaultDetectorConfig())

	sig, ok := d.Evaluate("INFY", habars, ema, 89)
	require.True(t, ok)
	assert.Equal(t, "INFY", sig.Symbol)
	assert.Equal(t, 89, sig.BarIndex)
	assert.Equal(t, habars[89].Time, sig.Date)
	assert.Equal(t, 108.0, sig.High)
	assert.Equal(t, 104.0, sig.Close)
	assert.Equal(t, 100.0, sig.LongEMA)
	assert.InDelta(t, 3.0, sig.BreakoutStrength, 1e-9)
}

func TestDetector_EachConditionNecessary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h []domain.HABar, ema []float64)
		cfg    DetectorConfig
		failed func(c Check) bool
	}{
		{
			// Bullishness is implied by conditions 2 and 3, so breaking it also opens above the EMA.
			name:   "bearish HA candle",
			mutate: func(h []domain.HABar, _ []float64) { h[89].HAOpen = 104 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.Bullish },
		},
		{
			name:   "HA close not above EMA",
			mutate: func(h []domain.HABar, _ []float64) { h[89].HAClose = 100 },
			cfg:    DetectorConfig{LongPeriod: 89, MinBreakoutStrength: 0},
			failed: func(c Check) bool { return !c.CloseAboveEMA && c.StrongEnough },
		},
		{
			name:   "HA open above EMA",
			mutate: func(h []domain.HABar, _ []float64) { h[89].HAOpen = 100.5 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.OpenAtOrBelowEMA && c.Bullish && c.StrongEnough },
		},
		{
			name:   "no valid close 89 bars back",
			mutate: func(h []domain.HABar, _ []float64) { h[0].Close = 0 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.HistoryValid },
		},
		{
			name:   "previous bar touching EMA",
			mutate: func(h []domain.HABar, _ []float64) { h[88].HAClose = 100 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.PrevBelowEMA && c.Prev2NotAboveEMA },
		},
		{
			name:   "bar two back above EMA",
			mutate: func(h []domain.HABar, _ []float64) { h[87].HAClose = 100.1 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.Prev2NotAboveEMA && c.PrevBelowEMA },
		},
		{
			name:   "breakout too weak",
			mutate: func(h []domain.HABar, _ []float64) { h[89].HAClose = 100.5 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.StrongEnough && c.CloseAboveEMA },
		},
		{
			name:   "non-positive EMA",
			mutate: func(_ []domain.HABar, ema []float64) { ema[89] = 0 },
			cfg:    DefaultDetectorConfig(),
			failed: func(c Check) bool { return !c.StrongEnough },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			habars, ema := breakoutFixture()
			d := newDetector(t, tt.cfg)

			// The unmodified fixture fires under this configuration.
			_, ok := d.Evaluate("X", habars, ema, 89)
			require.True(t, ok)

			tt.mutate(habars, ema)
			c := d.Inspect(habars, ema, 89)
			assert.False(t, c.Passed())
			assert.True(t, tt.failed(c), "unexpected check: %+v (failed: %s)", c, c.Failed())

			_, ok = d.Evaluate("X", habars, ema, 89)
			assert.False(t, ok)
		})
	}
}

func TestDetector_HistoryGuard(t *testing.T) {
	habars, ema := breakoutFixture()
	d := newDetector(t, DefaultDetectorConfig())

	c := d.Inspect(habars, ema, 88)
	assert.False(t, c.EnoughHistory)
	assert.Equal(t, "history,bullish,close_above_ema,open_at_or_below_ema,history_valid,prev_below_ema,prev2_not_above_ema,strength", c.Failed())

	_, ok := d.Evaluate("X", habars, ema, 120)
	assert.False(t, ok, "out of range index")
	_, ok = d.Evaluate("X", habars, ema[:50], 89)
	assert.False(t, ok, "misaligned EMA")
}

func TestDetector_Scan(t *testing.T) {
	habars, ema := breakoutFixture()
	d := newDetector(t, DefaultDetectorConfig())

	sigs := d.Scan("X", habars, ema)
	require.Len(t, sigs, 1)
	assert.Equal(t, 89, sigs[0].BarIndex)

	assert.Empty(t, d.Scan("X", habars[:89], ema[:89]))
}

func TestDetector_TwelveMonthSeriesHasNoSignals(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 12)
	for i := range bars {
		c := 100 + float64(i)*120/11
		if i == 9 {
			c -= 40 // dip below trend before recovering
		}
		bars[i] = domain.Bar{Time: start.AddDate(0, i, 0), Open: c - 2, High: c + 5, Low: c - 6, Close: c}
	}
	habars := indicators.HeikinAshi(bars, indicators.DefaultDojiThresholds)
	ema89, err := indicators.EMA(indicators.HACloses(habars), 89)
	require.NoError(t, err)

	d := newDetector(t, DefaultDetectorConfig())
	assert.Empty(t, d.Scan("X", habars, ema89))
	for i := range habars {
		_, ok := d.Evaluate("X", habars, ema89, i)
		assert.False(t, ok)
	}
}

func TestNewDetector_Validation(t *testing.T) {
	_, err := NewDetector(DetectorConfig{LongPeriod: 0, MinBreakoutStrength: 1})
	assert.Error(t, err)
	_, err = NewDetector(DetectorConfig{LongPeriod: 89, MinBreakoutStrength: -1})
	assert.Error(t, err)
}
