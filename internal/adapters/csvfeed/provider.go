package csvfeed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
	"haBacktest/internal/utils"
)

// Provider serves monthly bars from <dir>/<SYMBOL>.csv files written by utils.WriteBarsToCSV.
type Provider struct {
	dir    string
	logger ports.Logger
}

// New creates an offline bar provider rooted at dir.
func New(dir string, logger ports.Logger) (*Provider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for CSV provider")
	}
	if dir == "" {
		return nil, fmt.Errorf("csv data directory is required: %w", ports.ErrConfigurationError)
	}
	return &Provider{dir: dir, logger: logger}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "csv" }

// Path returns the file backing symbol.
func (p *Provider) Path(symbol string) string {
	return filepath.Join(p.dir, strings.ToUpper(strings.TrimSpace(symbol))+".csv")
}

// FetchMonthlyBars reads the symbol's file and keeps bars with start <= time <= end.
func (p *Provider) FetchMonthlyBars(ctx context.Context, symbol string, start, end time.Time) ports.FetchResult {
	if err := ctx.Err(); err != nil {
		return ports.FetchError(fmt.Errorf("csv fetch canceled: %w: %w", ports.ErrContextCanceled, err))
	}
	path := p.Path(symbol)
	bars, err := utils.ReadBarsFromCSV(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ports.FetchError(fmt.Errorf("no bar file for %s: %w", symbol, ports.ErrDataUnavailable))
		}
		return ports.FetchError(err)
	}

	window := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		window = append(window, b)
	}
	p.logger.Debug(ctx, "Read bars from CSV", map[string]interface{}{"symbol": symbol, "path": path, "bars": len(window)})
	return ports.Fetched(window)
}
