package bootstrap

import (
	"fmt"
	"path/filepath"
	"time"

	"haBacktest/internal/app"
	"haBacktest/internal/utils"
)

// Report file names inside OUTPUT_DIR.
const (
	TradesFile  = "trades_all.csv"
	SummaryFile = "summary.md"
	SignalsFile = "signals.csv"
)

// BacktestReports lists the files written for a backtest run.
type BacktestReports struct {
	TradesPath  string
	SummaryPath string
}

// WriteBacktestReports writes the consolidated trade table and the markdown summary.
func WriteBacktestReports(outputDir, source string, res *app.RunResult) (*BacktestReports, error) {
	out := &BacktestReports{
		TradesPath:  filepath.Join(outputDir, TradesFile),
		SummaryPath: filepath.Join(outputDir, SummaryFile),
	}
	if err := utils.WriteTradesToCSV(res.Trades, out.TradesPath); err != nil {
		return nil, fmt.Errorf("write trades: %w", err)
	}
	meta := utils.ReportMeta{RunID: res.RunID, GeneratedAt: time.Now(), Source: source}
	if err := utils.WriteSummaryMarkdownFile(out.SummaryPath, meta, res.Summary); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	return out, nil
}

// WriteScanReport writes the scanner's signal table.
func WriteScanReport(outputDir string, res *app.ScanResult) (string, error) {
	path := filepath.Join(outputDir, SignalsFile)
	if err := utils.WriteSignalsToCSV(res.Signals, path); err != nil {
		return "", fmt.Errorf("write signals: %w", err)
	}
	return path, nil
}
