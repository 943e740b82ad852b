package analytics

import (
	"math"
	"sort"
	"strconv"

	"haBacktest/internal/domain"
)

// Stats holds distribution statistics of one metric over completed trades.
type Stats struct {
	Count  int
	Mean   float64
	Median float64
	Max    float64
	Min    float64
	StdDev float64 // Sample standard deviation
}

// GroupStats aggregates trades sharing one key (exit reason, market cap, sector).
type GroupStats struct {
	Key           string
	Signals       int
	Completed     int
	AvgReturnPct  float64 // Over completed trades in the group
	AvgCAGRPct    float64
	AvgMonthsHeld float64
	WinningTrades int
	WinRate       float64 // WinningTrades / Completed
}

// YearlyReturn is the average return of trades exiting in one calendar year.
type YearlyReturn struct {
	Year      int
	Trades    int
	AvgReturn float64
}

// Summary holds aggregate statistics of a backtest run.
type Summary struct {
	// Coverage
	TotalSignals   int
	Completed      int
	Failed         int
	UniqueSymbols  int
	SuccessRate    float64 // Completed / TotalSignals
	StatusCounts   map[domain.TradeStatus]int
	FailedMessages map[string]int // Error messages by frequency

	// Outcome distributions over completed trades
	Return     Stats
	CAGR       Stats
	CMGR       Stats
	Drawdown   Stats
	MonthsHeld Stats

	// Trade quality
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	AverageWin           float64
	AverageLoss          float64
	ProfitFactor         float64 // Sum of winning returns / |sum of losing returns|
	Expectancy           float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	YearlyReturns        map[int]*YearlyReturn

	// Breakdowns
	ByExitReason []*GroupStats
	ByMarketCap  []*GroupStats
	BySector     []*GroupStats
}

// Summarize aggregates trades into run statistics. Input order is not modified.
func Summarize(trades []domain.Trade) *Summary {
	s := &Summary{
		TotalSignals:   len(trades),
		StatusCounts:   make(map[domain.TradeStatus]int),
		FailedMessages: make(map[string]int),
		YearlyReturns:  make(map[int]*YearlyReturn),
	}
	if len(trades) == 0 {
		return s
	}

	symbols := make(map[string]struct{})
	byReason := newGrouper()
	byCap := newGrouper()
	bySector := newGrouper()

	var returns, cagrs, cmgrs, drawdowns, held []float64
	var completed []domain.Trade
	for _, t := range trades {
		symbols[t.Symbol] = struct{}{}
		s.StatusCounts[t.Status]++
		byCap.add(keyOr(t.MarketCap, "Unknown"), t)
		bySector.add(keyOr(t.Sector, "Unknown"), t)

		if !t.IsCompleted() {
			s.Failed++
			if t.Message != "" {
				s.FailedMessages[t.Message]++
			}
			continue
		}
		s.Completed++
		byReason.add(string(t.ExitReason), t)
		completed = append(completed, t)
		returns = append(returns, t.TotalReturnPct)
		cagrs = append(cagrs, t.CAGRPct)
		cmgrs = append(cmgrs, t.CMGRPct)
		drawdowns = append(drawdowns, t.DrawdownPct)
		held = append(held, float64(t.MonthsHeld))
	}

	s.UniqueSymbols = len(symbols)
	s.SuccessRate = float64(s.Completed) / float64(s.TotalSignals)
	s.Return = computeStats(returns)
	s.CAGR = computeStats(cagrs)
	s.CMGR = computeStats(cmgrs)
	s.Drawdown = computeStats(drawdowns)
	s.MonthsHeld = computeStats(held)
	s.ByExitReason = byReason.sorted()
	s.ByMarketCap = byCap.sorted()
	s.BySector = bySector.sorted()

	s.applyTradeQuality(completed)
	return s
}

// applyTradeQuality computes win/loss statistics with trades ordered by exit date.
func (s *Summary) applyTradeQuality(completed []domain.Trade) {
	if len(completed) == 0 {
		return
	}
	ordered := make([]domain.Trade, len(completed))
	copy(ordered, completed)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitDate.Before(ordered[j].ExitDate)
	})

	var sumWin, sumLoss float64
	var consecutiveWins, consecutiveLosses int
	for _, t := range ordered {
		r := t.TotalReturnPct
		if r > 0 {
			s.WinningTrades++
			sumWin += r
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			s.LosingTrades++
			sumLoss += r
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > s.MaxConsecutiveLosses {
			s.MaxConsecutiveLosses = consecutiveLosses
		}

		year := t.ExitDate.Year()
		yr, ok := s.YearlyReturns[year]
		if !ok {
			yr = &YearlyReturn{Year: year}
			s.YearlyReturns[year] = yr
		}
		yr.AvgReturn = (yr.AvgReturn*float64(yr.Trades) + r) / float64(yr.Trades+1)
		yr.Trades++
	}

	s.WinRate = float64(s.WinningTrades) / float64(len(ordered))
	if s.WinningTrades > 0 {
		s.AverageWin = sumWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = sumLoss / float64(s.LosingTrades)
	}
	if sumLoss != 0 {
		s.ProfitFactor = sumWin / -sumLoss
	}
	s.Expectancy = s.WinRate*s.AverageWin + (1-s.WinRate)*s.AverageLoss
}

// GetYearlyReturns returns the yearly returns as a sorted slice
func (s *Summary) GetYearlyReturns() []YearlyReturn {
	out := make([]YearlyReturn, 0, len(s.YearlyReturns))
	for _, yr := range s.YearlyReturns {
		out = append(out, *yr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Year < out[j].Year
	})
	return out
}

// StatusCount returns the number of trades with status st.
func (s *Summary) StatusCount(st domain.TradeStatus) int {
	return s.StatusCounts[st]
}

type grouper struct {
	groups map[string]*GroupStats
}

func newGrouper() *grouper {
	return &grouper{groups: make(map[string]*GroupStats)}
}

func (g *grouper) add(key string, t domain.Trade) {
	gs, ok := g.groups[key]
	if !ok {
		gs = &GroupStats{Key: key}
		g.groups[key] = gs
	}
	gs.Signals++
	if !t.IsCompleted() {
		return
	}
	n := float64(gs.Completed)
	gs.AvgReturnPct = (gs.AvgReturnPct*n + t.TotalReturnPct) / (n + 1)
	gs.AvgCAGRPct = (gs.AvgCAGRPct*n + t.CAGRPct) / (n + 1)
	gs.AvgMonthsHeld = (gs.AvgMonthsHeld*n + float64(t.MonthsHeld)) / (n + 1)
	gs.Completed++
	if t.TotalReturnPct > 0 {
		gs.WinningTrades++
	}
	gs.WinRate = float64(gs.WinningTrades) / float64(gs.Completed)
}

// sorted returns groups by descending signal count, then key.
func (g *grouper) sorted() []*GroupStats {
	out := make([]*GroupStats, 0, len(g.groups))
	for _, gs := range g.groups {
		out = append(out, gs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Signals != out[j].Signals {
			return out[i].Signals > out[j].Signals
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func keyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func computeStats(values []float64) Stats {
	st := Stats{Count: len(values)}
	if len(values) == 0 {
		return st
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st.Mean = sum / float64(len(sorted))
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.Median = sorted[mid]
	}

	if len(sorted) > 1 {
		var variance float64
		for _, v := range sorted {
			variance += (v - st.Mean) * (v - st.Mean)
		}
		st.StdDev = math.Sqrt(variance / float64(len(sorted)-1))
	}
	return st
}

// String renders a compact form used in logs.
func (st Stats) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return "mean=" + f(st.Mean) + " median=" + f(st.Median) + " min=" + f(st.Min) + " max=" + f(st.Max)
}
