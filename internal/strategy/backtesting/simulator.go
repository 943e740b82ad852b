package backtesting

import (
	"fmt"
	"math"
	"time"

	"haBacktest/internal/domain"
)

// SimulatorConfig holds the trade management parameters.
type SimulatorConfig struct {
	StopLossPct        float64 // Offset below entry for the fixed stop, e.g. 0.02
	StopLossUseMAFloor bool    // Raise the stop to the short EMA at entry when higher
}

// DefaultSimulatorConfig returns the canonical 2% stop with the EMA floor.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{StopLossPct: 0.02, StopLossUseMAFloor: true}
}

// SignalRef identifies the signal bar a trade is simulated from.
type SignalRef struct {
	Index     int     // Signal bar index in the series
	High      float64 // Breakout level; becomes the entry price
	Date      time.Time
	Symbol    string
	MarketCap string
	Sector    string
}

// Simulator walks a bar series forward from a signal to its exit.
// It is stateless; the same inputs always produce the same Trade.
type Simulator struct {
	config SimulatorConfig
}

// NewSimulator creates a simulator, validating its configuration.
func NewSimulator(config SimulatorConfig) (*Simulator, error) {
	if config.StopLossPct < 0 || config.StopLossPct >= 1 {
		return nil, fmt.Errorf("stop loss percent must be in [0, 1), got %.4f", config.StopLossPct)
	}
	return &Simulator{config: config}, nil
}

// exitLatch records the first bar at which an exit condition held.
type exitLatch struct {
	index int
	price float64
}

func (l *exitLatch) fired() bool { return l.index >= 0 }

func (l *exitLatch) set(k int, price float64) {
	if !l.fired() {
		l.index, l.price = k, price
	}
}

// Simulate runs the entry/exit state machine for one signal.
// habars and shortEMA must be aligned and cover the signal bar and everything after it.
func (s *Simulator) Simulate(sig SignalRef, habars []domain.HABar, shortEMA []float64) domain.Trade {
	trade := domain.Trade{
		Symbol:      sig.Symbol,
		SignalDate:  sig.Date,
		MarketCap:   sig.MarketCap,
		Sector:      sig.Sector,
		SignalHigh:  sig.High,
		SignalIndex: sig.Index,
	}

	if len(shortEMA) != len(habars) {
		trade.Status = domain.StatusError
		trade.Message = fmt.Sprintf("short EMA length %d does not match %d bars", len(shortEMA), len(habars))
		return trade
	}
	if sig.Index < 0 || sig.Index >= len(habars) {
		trade.Status = domain.StatusError
		trade.Message = fmt.Sprintf("signal index %d outside series of %d bars", sig.Index, len(habars))
		return trade
	}

	// AwaitingEntry: the signal bar itself can never trigger.
	entryIdx := -1
	for j := sig.Index + 1; j < len(habars); j++ {
		if habars[j].High > sig.High && habars[j].Close > shortEMA[j] {
			entryIdx = j
			break
		}
	}
	if entryIdx < 0 {
		trade.Status = domain.StatusNoEntry
		trade.Message = "signal high never breached above the short EMA"
		return trade
	}

	entryPrice := sig.High
	trade.EntryPrice = entryPrice
	trade.EntryDate = habars[entryIdx].Time
	trade.EntryIndex = entryIdx
	if entryPrice <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) {
		trade.Status = domain.StatusError
		trade.Message = "entry price is zero"
		return trade
	}

	// Open: the stop floor is fixed at entry, never trailed.
	stopLevel := entryPrice * (1 - s.config.StopLossPct)
	if s.config.StopLossUseMAFloor && shortEMA[entryIdx] > stopLevel {
		stopLevel = shortEMA[entryIdx]
	}
	trade.StopLossLevel = stopLevel

	stop := exitLatch{index: -1}
	doji := exitLatch{index: -1}
	trend := exitLatch{index: -1}
	for k := entryIdx + 1; k < len(habars); k++ {
		closePrice := habars[k].Close
		if closePrice < stopLevel {
			stop.set(k, closePrice)
		}
		if habars[k].IsRedDoji {
			doji.set(k, closePrice)
		}
		if closePrice < shortEMA[k] {
			trend.set(k, closePrice)
			break // the first close below the short EMA ends the scan for every condition
		}
	}
	trade.StopLossPrice = stop.price
	trade.Target1Price = doji.price
	trade.Target2Price = trend.price

	// Closed: earliest latch wins; on a tie the order below is the priority.
	exitIdx, reason := -1, domain.ExitEndOfData
	for _, c := range []struct {
		latch  exitLatch
		reason domain.ExitReason
	}{
		{stop, domain.ExitStopLoss},
		{doji, domain.ExitTarget1RedDoji},
		{trend, domain.ExitTarget2BelowMA},
	} {
		if c.latch.fired() && (exitIdx < 0 || c.latch.index < exitIdx) {
			exitIdx, reason = c.latch.index, c.reason
		}
	}
	if exitIdx < 0 {
		exitIdx = len(habars) - 1
	}

	trade.Status = domain.StatusCompleted
	trade.ExitIndex = exitIdx
	trade.ExitDate = habars[exitIdx].Time
	trade.ExitPrice = habars[exitIdx].Close
	trade.ExitReason = reason
	trade.MonthsHeld = exitIdx - entryIdx

	applyMetrics(&trade, habars[entryIdx:exitIdx+1])
	return trade
}

// applyMetrics fills the return and excursion metrics of a completed trade.
// window covers [entry, exit] inclusive.
func applyMetrics(t *domain.Trade, window []domain.HABar) {
	t.TotalReturnPct = finite((t.ExitPrice - t.EntryPrice) / t.EntryPrice * 100)

	ratio := t.ExitPrice / t.EntryPrice
	if t.MonthsHeld > 0 {
		years := float64(t.MonthsHeld) / 12
		t.CAGRPct = growthRate(ratio, years)
		t.CMGRPct = growthRate(ratio, float64(t.MonthsHeld))
	} else {
		t.CAGRPct = t.TotalReturnPct
		t.CMGRPct = 0
	}

	minLow := math.Inf(1)
	for i, b := range window {
		if i == 0 || b.High > t.MaxHigh {
			t.MaxHigh = b.High
			t.MaxHighDate = b.Time
		}
		if b.Low < minLow {
			minLow = b.Low
		}
	}
	t.DrawdownPct = finite((t.EntryPrice - minLow) / t.EntryPrice * 100)
}

// growthRate annualizes (or monthly-izes) ratio over periods.
// A non-positive ratio has no real root and yields 0.
func growthRate(ratio, periods float64) float64 {
	if periods <= 0 || ratio <= 0 {
		return 0
	}
	return finite((math.Pow(ratio, 1/periods) - 1) * 100)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
