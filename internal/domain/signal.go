package domain

import "time"

// Signal is a bar that satisfied the breakout detection rule.
type Signal struct {
	Symbol           string
	MarketCap        string
	Sector           string
	BarIndex         int       // Index of the signal bar in the series it was detected on
	Date             time.Time // Signal bar time
	High             float64   // Regular high of the signal bar (breakout level)
	Close            float64   // Regular close of the signal bar
	HAOpen           float64
	HAClose          float64
	LongEMA          float64 // Long-period EMA at the signal bar
	BreakoutStrength float64 // (HAClose - LongEMA) / LongEMA * 100
}

// SignalRow is a pre-detected signal loaded from a signal list, before its bars are fetched.
type SignalRow struct {
	Symbol    string
	Date      time.Time
	MarketCap string
	Sector    string
}

// Row converts a detected signal into the row form consumed by the backtest batch.
func (s Signal) Row() SignalRow {
	return SignalRow{
		Symbol:    s.Symbol,
		Date:      s.Date,
		MarketCap: s.MarketCap,
		Sector:    s.Sector,
	}
}
