package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"haBacktest/config"
	"haBacktest/internal/adapters/logger"
	"haBacktest/internal/adapters/sqlite"
	"haBacktest/internal/domain"
	"haBacktest/internal/strategy/analytics"
	"haBacktest/internal/utils"
)

func main() {
	dir := flag.String("dir", "", "Directory holding trade CSVs (defaults to OUTPUT_DIR)")
	prefix := flag.String("prefix", "trades_", "Trade CSV file name prefix")
	runID := flag.String("run", "", "Analyze a persisted run from the database instead of CSV files")
	listRuns := flag.Bool("runs", false, "List persisted runs and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *dir == "" {
		*dir = cfg.OutputDir
	}

	if *listRuns || *runID != "" {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger.NewStdLogger(logger.LevelWarn)})
		if err != nil {
			log.Fatalf("FATAL: Failed to open database: %v", err)
		}
		defer repo.Close()

		if *listRuns {
			printRuns(os.Stdout, repo)
			return
		}
		trades, err := repo.TradesByRun(context.Background(), *runID)
		if err != nil {
			log.Fatalf("FATAL: Failed to load run %s: %v", *runID, err)
		}
		if len(trades) == 0 {
			log.Printf("Run %s has no trades.", *runID)
			return
		}
		summary := analytics.Summarize(trades)
		printOverview(os.Stdout, []namedSummary{{name: "run " + *runID, summary: summary}})
		printBreakdowns(os.Stdout, summary)
		return
	}

	// Find all trade files
	files, err := findBacktestFiles(*dir, *prefix)
	if err != nil {
		log.Fatalf("Error finding backtest files: %v", err)
	}
	if len(files) == 0 {
		log.Println("No backtest files found. Run the backtest runner first.")
		return
	}

	var summaries []namedSummary
	var batched, consolidated []domain.Trade
	for _, file := range files {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			log.Printf("Error reading trades from %s: %v", file, err)
			continue
		}
		summaries = append(summaries, namedSummary{name: filepath.Base(file), summary: analytics.Summarize(trades)})
		if isBatchFile(file) {
			batched = append(batched, trades...)
		} else {
			consolidated = append(consolidated, trades...)
		}
	}
	printOverview(os.Stdout, summaries)

	// Batch files partition the consolidated table, so only one of the two is counted.
	if len(batched) > 0 {
		printBreakdowns(os.Stdout, analytics.Summarize(batched))
	} else {
		printBreakdowns(os.Stdout, analytics.Summarize(consolidated))
	}
}

type namedSummary struct {
	name    string
	summary *analytics.Summary
}

func isBatchFile(path string) bool {
	return strings.Contains(filepath.Base(path), "_batch_")
}

// findBacktestFiles finds all trade files in the specified directory, sorted by name
func findBacktestFiles(dir, prefix string) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func printRuns(out io.Writer, repo *sqlite.Repository) {
	runs, err := repo.ListRuns(context.Background())
	if err != nil {
		log.Fatalf("FATAL: Failed to list runs: %v", err)
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Run\tStarted\tTrades\tCompleted\t")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t\n", r.RunID, r.FirstSeen.Format("2006-01-02 15:04"), r.Trades, r.Completed)
	}
	w.Flush()
}

func printOverview(out io.Writer, summaries []namedSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "File\tSignals\tCompleted\tWinRate\tAvgRet%\tMedRet%\tAvgCAGR%\tAvgDD%\tAvgMonths\t")
	for _, ns := range summaries {
		s := ns.summary
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f\t\n",
			ns.name,
			s.TotalSignals,
			s.Completed,
			s.WinRate*100,
			s.Return.Mean,
			s.Return.Median,
			s.CAGR.Mean,
			s.Drawdown.Mean,
			s.MonthsHeld.Mean,
		)
	}
	w.Flush()
}

func printBreakdowns(out io.Writer, s *analytics.Summary) {
	fmt.Fprintln(out, "\n## Status")
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	for _, st := range []domain.TradeStatus{domain.StatusCompleted, domain.StatusNoEntry, domain.StatusNoData, domain.StatusNoSignalCandle, domain.StatusError} {
		fmt.Fprintf(w, "%s\t%d\t\n", st, s.StatusCount(st))
	}
	w.Flush()

	printGroups(out, "Exit Reason", s.ByExitReason)
	printGroups(out, "Market Cap", s.ByMarketCap)
	printGroups(out, "Sector", s.BySector)

	if years := s.GetYearlyReturns(); len(years) > 0 {
		fmt.Fprintln(out, "\n## Exit Year")
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Year\tTrades\tAvgRet%\t")
		for _, yr := range years {
			fmt.Fprintf(w, "%d\t%d\t%.2f\t\n", yr.Year, yr.Trades, yr.AvgReturn)
		}
		w.Flush()
	}
}

func printGroups(out io.Writer, title string, groups []*analytics.GroupStats) {
	if len(groups) == 0 {
		return
	}
	fmt.Fprintf(out, "\n## %s\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "%s\tSignals\tCompleted\tAvgRet%%\tAvgCAGR%%\tWinRate%%\t\n", title)
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.2f\t%.1f\t\n", g.Key, g.Signals, g.Completed, g.AvgReturnPct, g.AvgCAGRPct, g.WinRate*100)
	}
	w.Flush()
}
