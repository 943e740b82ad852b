package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"haBacktest/config"
	"haBacktest/internal/adapters/refdata"
	"haBacktest/internal/adapters/sqlite"
	"haBacktest/internal/app"
	"haBacktest/internal/bootstrap"
	"haBacktest/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, flush, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize market data
	provider, closeProvider, err := bootstrap.NewProvider(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data provider")
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	defer closeProvider()
	appLogger.Info(context.Background(), "Market data provider initialized", map[string]interface{}{"provider": provider.Name()})

	// 5. Load reference data
	universe, err := refdata.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to load universe", map[string]interface{}{"path": cfg.UniverseFile})
		log.Fatalf("FATAL: Failed to load universe: %v", err)
	}

	// 6. Initialize Services
	scanner, err := app.NewScanService(cfg, appLogger, provider, repo)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize scan service: %v", err)
	}
	batches := utils.NewTradeBatchWriter(cfg.OutputDir, "trades_batch")
	backtester, err := app.NewBacktestService(cfg, appLogger, provider, repo, batches)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	// 7. Scan the universe for breakout signals
	scan, err := scanner.Scan(ctx, universe)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			appLogger.Error(context.Background(), err, "Signal scan failed")
		}
		os.Exit(1)
	}
	signalsPath, err := bootstrap.WriteScanReport(cfg.OutputDir, scan)
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to write signal list")
		os.Exit(1)
	}
	if len(scan.Signals) == 0 {
		appLogger.Warn(ctx, "No signals found; nothing to backtest", map[string]interface{}{"scanned": scan.Scanned})
		return
	}

	// 8. Backtest every detected signal
	res, runErr := backtester.Run(ctx, app.SignalRows(scan.Signals))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		appLogger.Error(ctx, runErr, "Backtest aborted")
	}

	// 9. Reports cover whatever was persisted
	reports, err := bootstrap.WriteBacktestReports(cfg.OutputDir, signalsPath, res)
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to write reports")
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Pipeline finished", map[string]interface{}{
		"scanRunID":     scan.RunID,
		"backtestRunID": res.RunID,
		"signals":       len(scan.Signals),
		"trades":        len(res.Trades),
		"completed":     res.Summary.Completed,
		"meanReturn":    res.Summary.Return.Mean,
		"tradesCSV":     reports.TradesPath,
		"summary":       reports.SummaryPath,
	})

	if runErr != nil {
		os.Exit(1)
	}
}
