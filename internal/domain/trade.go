package domain

import "time"

// Trade is the terminal outcome of simulating one signal.
// Zero prices and zero times mean "undefined" for the row's status.
type Trade struct {
	ID         int64  // Assigned by the repository
	RunID      string // Batch run the trade belongs to
	Symbol     string
	SignalDate time.Time
	MarketCap  string
	Sector     string
	Status     TradeStatus
	Message    string // Failure detail for Error rows

	// Indices are positions within the signal's own simulation window.
	SignalHigh  float64
	SignalIndex int

	EntryPrice float64
	EntryDate  time.Time
	EntryIndex int

	ExitPrice  float64
	ExitDate   time.Time
	ExitIndex  int
	ExitReason ExitReason

	MonthsHeld     int // Bar count between entry and exit
	TotalReturnPct float64
	CAGRPct        float64
	CMGRPct        float64
	MaxHigh        float64
	MaxHighDate    time.Time
	DrawdownPct    float64

	StopLossLevel float64 // Fixed stop floor computed at entry
	StopLossPrice float64 // Close of the first bar that breached the stop
	Target1Price  float64 // Close of the first red doji bar
	Target2Price  float64 // Close of the first bar below the short EMA
}

// IsCompleted reports whether the trade was entered and exited.
func (t *Trade) IsCompleted() bool {
	return t.Status == StatusCompleted
}
