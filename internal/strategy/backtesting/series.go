package backtesting

import (
	"fmt"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/strategy/indicators"
)

// Series is a symbol's bar history prepared for simulation.
type Series struct {
	Bars     []domain.HABar
	ShortEMA []float64
}

// PrepareSeries applies the Heikin-Ashi transform and computes the short EMA on regular closes.
func PrepareSeries(bars []domain.Bar, doji indicators.DojiThresholds, shortPeriod int) (Series, error) {
	habars := indicators.HeikinAshi(bars, doji)
	ema, err := indicators.EMA(indicators.Closes(bars), shortPeriod)
	if err != nil {
		return Series{}, fmt.Errorf("short EMA: %w", err)
	}
	return Series{Bars: habars, ShortEMA: ema}, nil
}

// SimulateRow locates the signal bar for a pre-detected signal row and simulates it.
// A row whose date cannot be matched to a bar yields a NoSignalCandle trade.
func (s *Simulator) SimulateRow(row domain.SignalRow, series Series, maxDistance time.Duration) domain.Trade {
	idx, ok := LocateSignalBar(series.Bars, row.Date, maxDistance)
	if !ok {
		return domain.Trade{
			Symbol:     row.Symbol,
			SignalDate: row.Date,
			MarketCap:  row.MarketCap,
			Sector:     row.Sector,
			Status:     domain.StatusNoSignalCandle,
			Message:    fmt.Sprintf("no bar near signal date %s", row.Date.Format("2006-01-02")),
		}
	}
	return s.Simulate(SignalRef{
		Index:     idx,
		High:      series.Bars[idx].High,
		Date:      row.Date,
		Symbol:    row.Symbol,
		MarketCap: row.MarketCap,
		Sector:    row.Sector,
	}, series.Bars, series.ShortEMA)
}
