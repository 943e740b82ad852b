package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"haBacktest/config"
	"haBacktest/internal/adapters/sqlite"
	"haBacktest/internal/app"
	"haBacktest/internal/bootstrap"
	"haBacktest/internal/utils"
)

func main() {
	signalsPath := flag.String("signals", "", "Signal list CSV (date dd-mm-yyyy, symbol, marketcapname, sector); defaults to OUTPUT_DIR/signals.csv")
	limit := flag.Int("limit", 0, "Only backtest the first N signals (0 = all)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *signalsPath == "" {
		*signalsPath = filepath.Join(cfg.OutputDir, bootstrap.SignalsFile)
	}

	// 2. Initialize Logger
	appLogger, flush, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()

	// Interrupts cancel the run; persisted chunks stay intact.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Load signals
	rows, err := utils.ReadSignalRowsFromCSV(*signalsPath)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to read signal list", map[string]interface{}{"path": *signalsPath})
		log.Fatalf("FATAL: Failed to read signal list: %v", err)
	}
	if *limit > 0 && *limit < len(rows) {
		rows = rows[:*limit]
	}
	appLogger.Info(ctx, "Loaded signals", map[string]interface{}{"path": *signalsPath, "count": len(rows)})

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 5. Initialize market data
	provider, closeProvider, err := bootstrap.NewProvider(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	defer closeProvider()

	// 6. Run the batch
	batches := utils.NewTradeBatchWriter(cfg.OutputDir, "trades_batch")
	svc, err := app.NewBacktestService(cfg, appLogger, provider, repo, batches)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	res, runErr := svc.Run(ctx, rows)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		appLogger.Error(ctx, runErr, "Backtest aborted")
	}

	// 7. Reports cover whatever was persisted
	reports, err := bootstrap.WriteBacktestReports(cfg.OutputDir, *signalsPath, res)
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to write reports")
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Backtest finished", map[string]interface{}{
		"runID":       res.RunID,
		"trades":      len(res.Trades),
		"completed":   res.Summary.Completed,
		"successRate": res.Summary.SuccessRate,
		"meanReturn":  res.Summary.Return.Mean,
		"chunks":      res.ChunksPersisted,
		"batchFiles":  len(batches.Files()),
		"tradesCSV":   reports.TradesPath,
		"summary":     reports.SummaryPath,
		"duration":    res.Duration.String(),
	})

	if runErr != nil {
		os.Exit(1)
	}
}
