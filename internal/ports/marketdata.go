package ports

import (
	"context"
	"time"

	"haBacktest/internal/domain"
)

// FetchOutcome classifies the result of a bar fetch.
type FetchOutcome int

const (
	FetchOK     FetchOutcome = iota // Bars were returned
	FetchEmpty                      // Provider answered but had no bars (delisted, unlisted, out of range)
	FetchFailed                     // Transport, decoding or provider error
)

// String returns the string representation of the FetchOutcome.
func (o FetchOutcome) String() string {
	switch o {
	case FetchOK:
		return "ok"
	case FetchEmpty:
		return "empty"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchResult is the typed outcome of a market-data request.
// Providers never panic or return bare errors past this boundary; the caller decides what to do.
type FetchResult struct {
	Bars    []domain.Bar
	Outcome FetchOutcome
	Err     error // Set when Outcome is FetchFailed
}

// Fetched builds a FetchResult from a bar slice, classifying an empty slice as FetchEmpty.
func Fetched(bars []domain.Bar) FetchResult {
	if len(bars) == 0 {
		return FetchResult{Outcome: FetchEmpty}
	}
	return FetchResult{Bars: bars, Outcome: FetchOK}
}

// FetchError builds a failed FetchResult.
func FetchError(err error) FetchResult {
	return FetchResult{Outcome: FetchFailed, Err: err}
}

// BarProvider defines the interface for retrieving monthly OHLC history.
// This abstraction allows decoupling the backtest from specific data vendors.
type BarProvider interface {
	// FetchMonthlyBars returns the monthly bars for symbol with start <= time <= end,
	// ordered by strictly increasing time.
	FetchMonthlyBars(ctx context.Context, symbol string, start, end time.Time) FetchResult

	// Name returns a short identifier of the provider for logging.
	Name() string
}

// Throttle gates outbound requests to a data provider.
type Throttle interface {
	// Wait blocks until the next request may be sent or ctx is done.
	Wait(ctx context.Context) error
}
