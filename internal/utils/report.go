package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/strategy/analytics"

	"github.com/shopspring/decimal"
)

// ReportMeta describes the run a summary report belongs to.
type ReportMeta struct {
	RunID       string
	GeneratedAt time.Time
	Source      string // Input file or universe
}

var statusOrder = []domain.TradeStatus{
	domain.StatusCompleted,
	domain.StatusNoEntry,
	domain.StatusNoData,
	domain.StatusNoSignalCandle,
	domain.StatusError,
}

// WriteSummaryMarkdown renders a run summary as markdown tables.
func WriteSummaryMarkdown(w io.Writer, meta ReportMeta, s *analytics.Summary) error {
	var b strings.Builder

	b.WriteString("# Heikin-Ashi Breakout Backtest Report\n\n")
	if meta.RunID != "" {
		fmt.Fprintf(&b, "- **Run ID**: `%s`\n", meta.RunID)
	}
	if !meta.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- **Generated**: %s\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	}
	if meta.Source != "" {
		fmt.Fprintf(&b, "- **Source**: %s\n", meta.Source)
	}
	b.WriteString("\n## Coverage\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total signals | %d |\n", s.TotalSignals)
	fmt.Fprintf(&b, "| Unique symbols | %d |\n", s.UniqueSymbols)
	fmt.Fprintf(&b, "| Completed trades | %d |\n", s.Completed)
	fmt.Fprintf(&b, "| Failed / not traded | %d |\n", s.Failed)
	fmt.Fprintf(&b, "| Success rate | %s%% |\n", pct(s.SuccessRate))

	b.WriteString("\n## Status breakdown\n\n")
	b.WriteString("| Status | Count |\n|---|---|\n")
	for _, st := range statusOrder {
		if n := s.StatusCount(st); n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", st, n)
		}
	}

	if s.Completed > 0 {
		b.WriteString("\n## Returns (completed trades)\n\n")
		b.WriteString("| Metric | Mean | Median | Min | Max | Std dev |\n|---|---|---|---|---|---|\n")
		statsRow(&b, "Total return %", s.Return)
		statsRow(&b, "CAGR %", s.CAGR)
		statsRow(&b, "CMGR %", s.CMGR)
		statsRow(&b, "Drawdown %", s.Drawdown)
		statsRow(&b, "Months held", s.MonthsHeld)

		b.WriteString("\n## Trade quality\n\n")
		b.WriteString("| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Winning trades | %d |\n", s.WinningTrades)
		fmt.Fprintf(&b, "| Losing trades | %d |\n", s.LosingTrades)
		fmt.Fprintf(&b, "| Win rate | %s%% |\n", pct(s.WinRate))
		fmt.Fprintf(&b, "| Average win %% | %s |\n", formatNumber(s.AverageWin))
		fmt.Fprintf(&b, "| Average loss %% | %s |\n", formatNumber(s.AverageLoss))
		fmt.Fprintf(&b, "| Profit factor | %s |\n", formatNumber(s.ProfitFactor))
		fmt.Fprintf(&b, "| Expectancy %% | %s |\n", formatNumber(s.Expectancy))
		fmt.Fprintf(&b, "| Max consecutive wins | %d |\n", s.MaxConsecutiveWins)
		fmt.Fprintf(&b, "| Max consecutive losses | %d |\n", s.MaxConsecutiveLosses)

		groupTable(&b, "Exit reason", s.ByExitReason)

		if years := s.GetYearlyReturns(); len(years) > 0 {
			b.WriteString("\n## Returns by exit year\n\n")
			b.WriteString("| Year | Trades | Avg return % |\n|---|---|---|\n")
			for _, yr := range years {
				fmt.Fprintf(&b, "| %d | %d | %s |\n", yr.Year, yr.Trades, formatNumber(yr.AvgReturn))
			}
		}
	}

	groupTable(&b, "Market cap", s.ByMarketCap)
	groupTable(&b, "Sector", s.BySector)

	if len(s.FailedMessages) > 0 {
		b.WriteString("\n## Errors\n\n")
		b.WriteString("| Message | Count |\n|---|---|\n")
		msgs := make([]string, 0, len(s.FailedMessages))
		for m := range s.FailedMessages {
			msgs = append(msgs, m)
		}
		sort.Slice(msgs, func(i, j int) bool {
			if s.FailedMessages[msgs[i]] != s.FailedMessages[msgs[j]] {
				return s.FailedMessages[msgs[i]] > s.FailedMessages[msgs[j]]
			}
			return msgs[i] < msgs[j]
		})
		for _, m := range msgs {
			fmt.Fprintf(&b, "| %s | %d |\n", escapeCell(m), s.FailedMessages[m])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSummaryMarkdownFile writes the report next to the CSV outputs.
func WriteSummaryMarkdownFile(filename string, meta ReportMeta, s *analytics.Summary) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteSummaryMarkdown(f, meta, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func statsRow(b *strings.Builder, name string, st analytics.Stats) {
	fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s |\n", name,
		formatNumber(st.Mean), formatNumber(st.Median), formatNumber(st.Min), formatNumber(st.Max), formatNumber(st.StdDev))
}

func groupTable(b *strings.Builder, title string, groups []*analytics.GroupStats) {
	if len(groups) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## By %s\n\n", strings.ToLower(title))
	fmt.Fprintf(b, "| %s | Signals | Completed | Avg return %% | Avg CAGR %% | Avg months | Win rate %% |\n", title)
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, g := range groups {
		fmt.Fprintf(b, "| %s | %d | %d | %s | %s | %s | %s |\n",
			escapeCell(g.Key), g.Signals, g.Completed,
			formatNumber(g.AvgReturnPct), formatNumber(g.AvgCAGRPct), formatNumber(g.AvgMonthsHeld), pct(g.WinRate))
	}
}

func pct(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}
