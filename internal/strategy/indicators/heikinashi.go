package indicators

import (
	"math"

	"haBacktest/internal/domain"
)

// DojiThresholds are the shape ratios, relative to the candle range, that make a
// bearish Heikin-Ashi candle a long-legged doji.
type DojiThresholds struct {
	Body        float64 // Maximum body / range
	UpperShadow float64 // Minimum upper shadow / range
	LowerShadow float64 // Minimum lower shadow / range
}

var (
	// DefaultDojiThresholds is the strict classification used by the exit rules.
	DefaultDojiThresholds = DojiThresholds{Body: 0.10, UpperShadow: 0.30, LowerShadow: 0.30}
	// RelaxedDojiThresholds catches more candles; useful for exploratory runs.
	RelaxedDojiThresholds = DojiThresholds{Body: 0.15, UpperShadow: 0.25, LowerShadow: 0.25}
)

// HeikinAshi transforms bars into Heikin-Ashi candles.
// The transform is a left-to-right fold: each HA open depends on the previous HA
// open and close, so the output is only meaningful for the exact input sequence.
func HeikinAshi(bars []domain.Bar, th DojiThresholds) []domain.HABar {
	if len(bars) == 0 {
		return nil
	}

	out := make([]domain.HABar, len(bars))
	var prevOpen, prevClose float64
	for i, b := range bars {
		haClose := (b.Open + b.High + b.Low + b.Close) / 4
		haOpen := b.Open
		if i > 0 {
			haOpen = (prevOpen + prevClose) / 2
		}
		haHigh := math.Max(b.High, math.Max(haOpen, haClose))
		haLow := math.Min(b.Low, math.Min(haOpen, haClose))

		hb := domain.HABar{
			Bar:         b,
			HAOpen:      haOpen,
			HAClose:     haClose,
			HAHigh:      haHigh,
			HALow:       haLow,
			Body:        math.Abs(haClose - haOpen),
			UpperShadow: haHigh - math.Max(haOpen, haClose),
			LowerShadow: math.Min(haOpen, haClose) - haLow,
			TotalRange:  haHigh - haLow,
		}
		hb.IsRedDoji = IsRedDoji(hb, th)
		out[i] = hb

		prevOpen, prevClose = haOpen, haClose
	}
	return out
}

// IsRedDoji classifies a Heikin-Ashi candle as a bearish long-legged doji.
// A candle with zero range is never a doji.
func IsRedDoji(b domain.HABar, th DojiThresholds) bool {
	if b.TotalRange <= 0 {
		return false
	}
	return b.HAClose < b.HAOpen &&
		b.Body <= th.Body*b.TotalRange &&
		b.UpperShadow >= th.UpperShadow*b.TotalRange &&
		b.LowerShadow >= th.LowerShadow*b.TotalRange
}
