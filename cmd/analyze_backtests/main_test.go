package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/strategy/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBacktestFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"trades_batch_002.csv", "trades_batch_001.csv", "trades_all.csv", "summary.md", "signals.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "trades_dir.csv"), 0o755))

	files, err := findBacktestFiles(dir, "trades_")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "trades_all.csv", filepath.Base(files[0]))
	assert.Equal(t, "trades_batch_001.csv", filepath.Base(files[1]))
	assert.Equal(t, "trades_batch_002.csv", filepath.Base(files[2]))

	assert.False(t, isBatchFile(files[0]))
	assert.True(t, isBatchFile(files[1]))

	_, err = findBacktestFiles(filepath.Join(dir, "missing"), "trades_")
	assert.Error(t, err)
}

func TestPrintReports(t *testing.T) {
	exit := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		{Symbol: "AAA", Status: domain.StatusCompleted, ExitReason: domain.ExitTarget1RedDoji, MarketCap: "Large", Sector: "IT", TotalReturnPct: 20, CAGRPct: 10, ExitDate: exit},
		{Symbol: "BBB", Status: domain.StatusNoEntry, MarketCap: "Small"},
	}
	s := analytics.Summarize(trades)

	var buf bytes.Buffer
	printOverview(&buf, []namedSummary{{name: "trades_all.csv", summary: s}})
	printBreakdowns(&buf, s)

	out := buf.String()
	assert.Contains(t, out, "trades_all.csv")
	assert.Contains(t, out, "## Exit Reason")
	assert.Contains(t, out, "## Market Cap")
	assert.Contains(t, out, "No Entry")
	assert.Contains(t, out, "2021")
}
