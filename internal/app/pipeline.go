package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"haBacktest/config"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
	"haBacktest/internal/strategy/backtesting"
	"haBacktest/internal/strategy/indicators"
)

// fetcher classifies a provider's fetch outcomes.
type fetcher struct {
	provider ports.BarProvider
	logger   ports.Logger
}

// fetchFailure describes why a symbol's bars could not be used.
type fetchFailure struct {
	status  domain.TradeStatus
	message string
	err     error
}

func (f *fetcher) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, *fetchFailure) {
	res := f.provider.FetchMonthlyBars(ctx, symbol, start, end)
	switch res.Outcome {
	case ports.FetchOK:
		f.logger.Debug(ctx, "Fetched monthly bars", map[string]interface{}{
			"symbol":   symbol,
			"bars":     len(res.Bars),
			"provider": f.provider.Name(),
		})
		return res.Bars, nil
	case ports.FetchEmpty:
		return nil, &fetchFailure{status: domain.StatusNoData, message: ports.ErrDataUnavailable.Error(), err: ports.ErrDataUnavailable}
	default:
		err := res.Err
		if err == nil {
			err = ports.ErrUnknown
		}
		if errors.Is(err, ports.ErrDataUnavailable) {
			return nil, &fetchFailure{status: domain.StatusNoData, message: err.Error(), err: err}
		}
		return nil, &fetchFailure{status: domain.StatusError, message: err.Error(), err: err}
	}
}

// symbolJob is one symbol's share of a chunk.
type symbolJob struct {
	symbol    string
	positions []int // Positions of the symbol's rows within the chunk
	start     time.Time
	end       time.Time
}

// groupBySymbol groups rows by symbol in order of first appearance and computes each fetch window.
func groupBySymbol(rows []domain.SignalRow, lookbackMonths, forwardMonths int) []*symbolJob {
	index := make(map[string]*symbolJob)
	var jobs []*symbolJob
	for pos, row := range rows {
		job, ok := index[row.Symbol]
		if !ok {
			job = &symbolJob{symbol: row.Symbol, start: row.Date, end: row.Date}
			index[row.Symbol] = job
			jobs = append(jobs, job)
		}
		job.positions = append(job.positions, pos)
		if row.Date.Before(job.start) {
			job.start = row.Date
		}
		if row.Date.After(job.end) {
			job.end = row.Date
		}
	}
	for _, job := range jobs {
		job.start, _ = signalWindow(job.start, lookbackMonths, forwardMonths)
		_, job.end = signalWindow(job.end, lookbackMonths, forwardMonths)
	}
	return jobs
}

// signalWindow returns the bar window a signal is simulated over.
func signalWindow(date time.Time, lookbackMonths, forwardMonths int) (time.Time, time.Time) {
	return date.AddDate(0, -lookbackMonths, 0), date.AddDate(0, forwardMonths, 0)
}

// windowBars returns the bars inside [start, end]. bars must be sorted by time.
// The result shares bars' backing array.
func windowBars(bars []domain.Bar, start, end time.Time) []domain.Bar {
	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(start) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(end) })
	if hi < lo {
		hi = lo
	}
	return bars[lo:hi]
}

// prepareRow cuts a signal's own window out of its symbol's bars and prepares it
// for simulation. Every signal sees the same bars a fetch of its window alone
// would return, whichever other signals share the fetch.
func prepareRow(cfg *config.Config, row domain.SignalRow, bars []domain.Bar) (backtesting.Series, *fetchFailure) {
	start, end := signalWindow(row.Date, cfg.LookbackMonths, cfg.ForwardMonths)
	window := windowBars(bars, start, end)
	if len(window) == 0 {
		return backtesting.Series{}, &fetchFailure{status: domain.StatusNoData, message: ports.ErrDataUnavailable.Error(), err: ports.ErrDataUnavailable}
	}
	series, err := backtesting.PrepareSeries(window, dojiThresholds(cfg), cfg.ShortEMAPeriod)
	if err != nil {
		return backtesting.Series{}, &fetchFailure{status: domain.StatusError, message: err.Error(), err: err}
	}
	return series, nil
}

// forEachLimited runs fn for indices [0, n) on at most workers goroutines.
// Dispatch stops once ctx is done; fn must record its own failures.
func forEachLimited(ctx context.Context, workers, n int, fn func(i int)) error {
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// dojiThresholds maps configuration to the classifier thresholds.
func dojiThresholds(cfg *config.Config) indicators.DojiThresholds {
	return indicators.DojiThresholds{
		Body:        cfg.DojiBodyRatio,
		UpperShadow: cfg.DojiUpperShadow,
		LowerShadow: cfg.DojiLowerShadow,
	}
}

// recoverAsError converts a panic in per-symbol work into an error.
func recoverAsError(r interface{}) error {
	if r == nil {
		return nil
	}
	return fmt.Errorf("%w: recovered panic: %v", ports.ErrUnknown, r)
}
