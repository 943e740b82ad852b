package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haBacktest/internal/domain"
)

func monthly(n int) time.Time {
	return time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
}

func TestHeikinAshi_Transform(t *testing.T) {
	bars := []domain.Bar{
		{Time: monthly(0), Open: 100, High: 110, Low: 90, Close: 104},
		{Time: monthly(1), Open: 104, High: 112, Low: 88, Close: 96},
	}

	ha := HeikinAshi(bars, DefaultDojiThresholds)
	require.Len(t, ha, 2)

	first := ha[0]
	assert.Equal(t, bars[0].Open, first.HAOpen, "first HA open equals the regular open")
	assert.InDelta(t, 101.0, first.HAClose, 1e-12)
	assert.Equal(t, 110.0, first.HAHigh)
	assert.Equal(t, 90.0, first.HALow)
	assert.InDelta(t, 1.0, first.Body, 1e-12)
	assert.InDelta(t, 9.0, first.UpperShadow, 1e-12)
	assert.InDelta(t, 10.0, first.LowerShadow, 1e-12)
	assert.InDelta(t, 20.0, first.TotalRange, 1e-12)
	assert.True(t, first.IsBullish())
	assert.False(t, first.IsRedDoji)

	second := ha[1]
	assert.InDelta(t, 100.5, second.HAOpen, 1e-12) // (100 + 101) / 2
	assert.InDelta(t, 100.0, second.HAClose, 1e-12)
	assert.InDelta(t, 24.0, second.TotalRange, 1e-12)
	assert.True(t, second.IsRedDoji)
	assert.Equal(t, bars[1], second.Bar)
}

func TestHeikinAshi_Deterministic(t *testing.T) {
	bars := make([]domain.Bar, 40)
	for i := range bars {
		p := 100 + float64(i%7)*3 - float64(i%3)
		bars[i] = domain.Bar{Time: monthly(i), Open: p, High: p + 5, Low: p - 4, Close: p + 1}
	}
	a := HeikinAshi(bars, DefaultDojiThresholds)
	b := HeikinAshi(bars, DefaultDojiThresholds)
	assert.Equal(t, a, b)
	for _, hb := range a {
		assert.GreaterOrEqual(t, hb.HAHigh, hb.HALow)
		assert.GreaterOrEqual(t, hb.TotalRange, 0.0)
	}
}

func TestHeikinAshi_Empty(t *testing.T) {
	assert.Nil(t, HeikinAshi(nil, DefaultDojiThresholds))
}

func TestIsRedDoji(t *testing.T) {
	tests := []struct {
		name string
		bar  domain.HABar
		th   DojiThresholds
		want bool
	}{
		{
			name: "zero range is never a doji",
			bar:  domain.HABar{HAOpen: 10, HAClose: 10, HAHigh: 10, HALow: 10},
			th:   DefaultDojiThresholds,
			want: false,
		},
		{
			name: "bullish candle",
			bar:  domain.HABar{HAOpen: 10, HAClose: 10.5, HAHigh: 14, HALow: 6, Body: 0.5, UpperShadow: 3.5, LowerShadow: 4, TotalRange: 8},
			th:   DefaultDojiThresholds,
			want: false,
		},
		{
			name: "bearish long-legged doji",
			bar:  domain.HABar{HAOpen: 10.5, HAClose: 10, HAHigh: 14, HALow: 6, Body: 0.5, UpperShadow: 3.5, LowerShadow: 4, TotalRange: 8},
			th:   DefaultDojiThresholds,
			want: true,
		},
		{
			name: "body too large for strict thresholds",
			bar:  domain.HABar{HAOpen: 11, HAClose: 10, HAHigh: 13.5, HALow: 6.5, Body: 1, UpperShadow: 2.5, LowerShadow: 3.5, TotalRange: 7},
			th:   DefaultDojiThresholds,
			want: false,
		},
		{
			name: "same candle passes relaxed thresholds",
			bar:  domain.HABar{HAOpen: 11, HAClose: 10, HAHigh: 13.5, HALow: 6.5, Body: 1, UpperShadow: 2.5, LowerShadow: 3.5, TotalRange: 7},
			th:   RelaxedDojiThresholds,
			want: true,
		},
		{
			name: "short upper shadow",
			bar:  domain.HABar{HAOpen: 10.5, HAClose: 10, HAHigh: 11, HALow: 4, Body: 0.5, UpperShadow: 0.5, LowerShadow: 6, TotalRange: 7},
			th:   DefaultDojiThresholds,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRedDoji(tt.bar, tt.th))
		})
	}
}

func TestColumn(t *testing.T) {
	ha := []domain.HABar{
		{Bar: domain.Bar{Close: 1}, HAClose: 2},
		{Bar: domain.Bar{Close: 3}, HAClose: 4},
	}
	assert.Equal(t, []float64{1, 3}, Column(ha, SourceClose))
	assert.Equal(t, []float64{2, 4}, Column(ha, SourceHAClose))

	src, ok := ParsePriceSource("ha_close")
	assert.True(t, ok)
	assert.Equal(t, SourceHAClose, src)
	_, ok = ParsePriceSource("open")
	assert.False(t, ok)
}
