package domain

// TradeStatus represents the terminal status of a simulated trade.
type TradeStatus string

const (
	StatusCompleted      TradeStatus = "Completed"
	StatusNoEntry        TradeStatus = "No Entry"
	StatusNoData         TradeStatus = "No Data"
	StatusNoSignalCandle TradeStatus = "No Signal Candle"
	StatusError          TradeStatus = "Error"
)

// IsFailure reports whether the status counts as a failed signal in summaries.
func (s TradeStatus) IsFailure() bool {
	return s != StatusCompleted
}

// ExitReason indicates why a completed trade was closed.
type ExitReason string

const (
	ExitStopLoss       ExitReason = "Stop Loss"
	ExitTarget1RedDoji ExitReason = "Target 1 - Red Doji"
	ExitTarget2BelowMA ExitReason = "Target 2 - Below 21 EMA"
	ExitEndOfData      ExitReason = "End of Data"
)
