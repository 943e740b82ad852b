package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"haBacktest/config"
	"haBacktest/internal/adapters/refdata"
	"haBacktest/internal/adapters/sqlite"
	"haBacktest/internal/app"
	"haBacktest/internal/bootstrap"
	"haBacktest/internal/domain"
	"haBacktest/internal/ports"

	"github.com/robfig/cron/v3"
)

func main() {
	universePath := flag.String("universe", "", "Universe YAML; defaults to UNIVERSE_FILE")
	once := flag.Bool("once", false, "Run a single scan even when SCAN_SCHEDULE is set")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *universePath == "" {
		*universePath = cfg.UniverseFile
	}

	// 2. Initialize Logger
	appLogger, flush, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Load reference data
	universe, err := refdata.LoadUniverse(*universePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load universe: %v", err)
	}
	appLogger.Info(ctx, "Universe loaded", map[string]interface{}{"path": *universePath, "instruments": len(universe)})

	// 4. Initialize Repository and market data
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	provider, closeProvider, err := bootstrap.NewProvider(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	defer closeProvider()

	scanner, err := app.NewScanService(cfg, appLogger, provider, repo)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize scan service: %v", err)
	}

	// 5. Run once, or on the configured schedule until interrupted
	if cfg.ScanSchedule == "" || *once {
		if err := runScan(ctx, scanner, universe, cfg.OutputDir, appLogger); err != nil {
			appLogger.Error(context.Background(), err, "Scan failed")
			os.Exit(1)
		}
		return
	}

	// Overlapping ticks are skipped while a scan is still running.
	var running sync.Mutex
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.ScanSchedule, func() {
		if !running.TryLock() {
			appLogger.Warn(ctx, "Previous scan still running; skipping tick")
			return
		}
		defer running.Unlock()
		if err := runScan(ctx, scanner, universe, cfg.OutputDir, appLogger); err != nil {
			appLogger.Error(ctx, err, "Scheduled scan failed")
		}
	}); err != nil {
		log.Fatalf("FATAL: Invalid SCAN_SCHEDULE '%s': %v", cfg.ScanSchedule, err)
	}

	sched.Start()
	appLogger.Info(ctx, "Scan scheduler started", map[string]interface{}{"schedule": cfg.ScanSchedule})
	<-ctx.Done()
	<-sched.Stop().Done()
	appLogger.Info(context.Background(), "Scan scheduler stopped")
}

func runScan(ctx context.Context, scanner *app.ScanService, universe []domain.Instrument, outputDir string, logger ports.Logger) error {
	res, err := scanner.Scan(ctx, universe)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	path, werr := bootstrap.WriteScanReport(outputDir, res)
	if werr != nil {
		return werr
	}
	logger.Info(ctx, "Signals written", map[string]interface{}{
		"runID":   res.RunID,
		"signals": len(res.Signals),
		"path":    path,
	})
	return err
}
