// Package signals detects Heikin-Ashi breakouts across a long moving average.
package signals

import (
	"fmt"
	"strings"

	"haBacktest/internal/domain"
)

// DetectorConfig holds the parameters of the breakout rule.
type DetectorConfig struct {
	LongPeriod          int     // Long EMA period; also the history guard
	MinBreakoutStrength float64 // Minimum (HAClose-EMA)/EMA in percent
}

// DefaultDetectorConfig returns the canonical 89-period, 1% rule.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{LongPeriod: 89, MinBreakoutStrength: 1.0}
}

// Check records which of the seven breakout conditions held at one bar.
type Check struct {
	Index            int
	EnoughHistory    bool
	Bullish          bool // 1. HA close above HA open
	CloseAboveEMA    bool // 2. HA close above EMA
	OpenAtOrBelowEMA bool // 3. HA open at or below EMA
	HistoryValid     bool // 4. regular close LongPeriod bars back is positive
	PrevBelowEMA     bool // 5. previous HA close strictly below its EMA
	Prev2NotAboveEMA bool // 6. HA close two bars back at or below its EMA
	StrongEnough     bool // 7. breakout strength at least the minimum
	BreakoutStrength float64
}

// Passed reports whether every condition held.
func (c Check) Passed() bool {
	return c.EnoughHistory && c.Bullish && c.CloseAboveEMA && c.OpenAtOrBelowEMA &&
		c.HistoryValid && c.PrevBelowEMA && c.Prev2NotAboveEMA && c.StrongEnough
}

// Failed lists the names of the conditions that did not hold.
func (c Check) Failed() string {
	var failed []string
	add := func(ok bool, name string) {
		if !ok {
			failed = append(failed, name)
		}
	}
	add(c.EnoughHistory, "history")
	add(c.Bullish, "bullish")
	add(c.CloseAboveEMA, "close_above_ema")
	add(c.OpenAtOrBelowEMA, "open_at_or_below_ema")
	add(c.HistoryValid, "history_valid")
	add(c.PrevBelowEMA, "prev_below_ema")
	add(c.Prev2NotAboveEMA, "prev2_not_above_ema")
	add(c.StrongEnough, "strength")
	return strings.Join(failed, ",")
}

// Detector evaluates the seven-condition breakout rule. It holds no state between calls.
type Detector struct {
	config DetectorConfig
}

// NewDetector creates a detector, validating its configuration.
func NewDetector(config DetectorConfig) (*Detector, error) {
	if config.LongPeriod <= 0 {
		return nil, fmt.Errorf("long EMA period must be positive, got %d", config.LongPeriod)
	}
	if config.MinBreakoutStrength < 0 {
		return nil, fmt.Errorf("minimum breakout strength must not be negative, got %.2f", config.MinBreakoutStrength)
	}
	return &Detector{config: config}, nil
}

// MinBars returns the number of bars needed before any signal can fire.
func (d *Detector) MinBars() int {
	n := d.config.LongPeriod + 1
	if n < 3 {
		n = 3
	}
	return n
}

// Inspect evaluates every condition at index i without short-circuiting.
// longEMA must be aligned with habars.
func (d *Detector) Inspect(habars []domain.HABar, longEMA []float64, i int) Check {
	c := Check{Index: i}
	if i < 0 || i >= len(habars) || i >= len(longEMA) {
		return c
	}
	c.EnoughHistory = i >= d.config.LongPeriod && i >= 2
	if !c.EnoughHistory {
		return c
	}

	cur := habars[i]
	ema := longEMA[i]
	c.Bullish = cur.HAClose > cur.HAOpen
	c.CloseAboveEMA = cur.HAClose > ema
	c.OpenAtOrBelowEMA = cur.HAOpen <= ema
	c.HistoryValid = habars[i-d.config.LongPeriod].Close > 0
	c.PrevBelowEMA = habars[i-1].HAClose < longEMA[i-1]
	c.Prev2NotAboveEMA = habars[i-2].HAClose <= longEMA[i-2]

	// A non-positive average makes the strength ratio meaningless.
	if ema > 0 {
		c.BreakoutStrength = (cur.HAClose - ema) / ema * 100
		c.StrongEnough = c.BreakoutStrength >= d.config.MinBreakoutStrength
	}
	return c
}

// Evaluate returns the signal at index i when all seven conditions hold.
func (d *Detector) Evaluate(symbol string, habars []domain.HABar, longEMA []float64, i int) (domain.Signal, bool) {
	c := d.Inspect(habars, longEMA, i)
	if !c.Passed() {
		return domain.Signal{}, false
	}
	b := habars[i]
	return domain.Signal{
		Symbol:           symbol,
		BarIndex:         i,
		Date:             b.Time,
		High:             b.High,
		Close:            b.Close,
		HAOpen:           b.HAOpen,
		HAClose:          b.HAClose,
		LongEMA:          longEMA[i],
		BreakoutStrength: c.BreakoutStrength,
	}, true
}

// Scan evaluates every index and returns the signals in bar order.
// Series shorter than MinBars yield no signals.
func (d *Detector) Scan(symbol string, habars []domain.HABar, longEMA []float64) []domain.Signal {
	if len(habars) < d.MinBars() {
		return nil
	}
	var out []domain.Signal
	for i := d.config.LongPeriod; i < len(habars); i++ {
		if sig, ok := d.Evaluate(symbol, habars, longEMA, i); ok {
			out = append(out, sig)
		}
	}
	return out
}
