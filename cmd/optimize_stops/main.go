package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"haBacktest/config"
	"haBacktest/internal/app"
	"haBacktest/internal/bootstrap"
	"haBacktest/internal/strategy/optimization"
	"haBacktest/internal/utils"
)

func main() {
	signalsPath := flag.String("signals", "", "Signal list CSV; defaults to OUTPUT_DIR/signals.csv")
	minStop := flag.Float64("min", 0.01, "Smallest stop-loss fraction to try")
	maxStop := flag.Float64("max", 0.10, "Largest stop-loss fraction to try")
	step := flag.Float64("step", 0.01, "Stop-loss step")
	floor := flag.Bool("floor", true, "Also compare with and without the short EMA stop floor")
	top := flag.Int("top", 10, "Number of combinations to print (0 = all)")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Load signals
	rows, err := utils.ReadSignalRowsFromCSV(*signalsPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to read signal list: %v", err)
	}

	// 4. Initialize market data
	provider, closeProvider, err := bootstrap.NewProvider(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	defer closeProvider()

	svc, err := app.NewSweepService(cfg, appLogger, provider)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize sweep service: %v", err)
	}

	// 5. Sweep
	ranges := []optimization.ParameterRange{{Name: optimization.ParamStopLossPct, Min: *minStop, Max: *maxStop, Step: *step}}
	if *floor {
		ranges = append(ranges, optimization.ParameterRange{Name: optimization.ParamMAFloor, Min: 0, Max: 1, Step: 1, IsInt: true})
	}
	res, err := svc.Sweep(ctx, rows, ranges)
	if err != nil {
		appLogger.Error(context.Background(), err, "Sweep failed")
		os.Exit(1)
	}

	fmt.Printf("Signals: %d simulated, %d skipped\n\n", res.Cases, res.Skipped)
	printResults(os.Stdout, res.Results, *top)
}

func printResults(out io.Writer, results []optimization.OptimizationResult, top int) {
	if top > 0 && top < len(results) {
		results = results[:top]
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Stop%\tMAFloor\tScore\tCompleted\tWinRate\tAvgRet%\tExpectancy\tProfitFactor\tAvgDD%\t")
	for _, r := range results {
		s := r.Summary
		floor := "-"
		if v, ok := r.Parameters[optimization.ParamMAFloor]; ok {
			floor = fmt.Sprintf("%t", v >= 0.5)
		}
		fmt.Fprintf(w, "%.2f\t%s\t%.4f\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			r.Parameters[optimization.ParamStopLossPct]*100,
			floor,
			r.Score,
			s.Completed,
			s.WinRate*100,
			s.Return.Mean,
			s.Expectancy,
			s.ProfitFactor,
			s.Drawdown.Mean,
		)
	}
	w.Flush()
}
