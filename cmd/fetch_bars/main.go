package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"haBacktest/config"
	"haBacktest/internal/bootstrap"
	"haBacktest/internal/ports"
	"haBacktest/internal/utils"
)

func main() {
	symbols := flag.String("symbols", "", "Comma separated symbols to download")
	years := flag.Int("years", 0, "Years of monthly history (defaults to SCAN_YEARS)")
	outDir := flag.String("out", "", "Output directory (defaults to CSV_DATA_DIR)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if cfg.DataProvider == config.ProviderCSV {
		log.Fatalf("FATAL: DATA_PROVIDER=csv reads the files this tool writes; choose yahoo or binance")
	}
	if *symbols == "" {
		log.Fatalf("FATAL: -symbols is required")
	}
	if *years <= 0 {
		*years = cfg.ScanYears
	}
	if *outDir == "" {
		*outDir = cfg.CSVDataDir
	}

	// 2. Initialize Logger
	appLogger, flush, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()

	// 3. Initialize market data
	ctx := context.Background()
	provider, closeProvider, err := bootstrap.NewProvider(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	defer closeProvider()

	end := time.Now().UTC()
	start := end.AddDate(-*years, 0, 0)
	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		fmt.Printf("Fetching monthly bars for %s from %s to %s...\n", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
		res := provider.FetchMonthlyBars(ctx, symbol, start, end)
		switch res.Outcome {
		case ports.FetchOK:
		case ports.FetchEmpty:
			appLogger.Warn(ctx, "No bars returned", map[string]interface{}{"symbol": symbol})
			continue
		default:
			appLogger.Error(ctx, res.Err, "Error fetching bars", map[string]interface{}{"symbol": symbol})
			continue
		}

		filename := filepath.Join(*outDir, symbol+".csv")
		if err := utils.WriteBarsToCSV(res.Bars, filename); err != nil {
			appLogger.Error(ctx, err, "Error writing CSV", map[string]interface{}{"symbol": symbol})
			continue
		}
		appLogger.Info(ctx, "Saved bars", map[string]interface{}{"symbol": symbol, "bars": len(res.Bars), "filename": filename})
	}
}
