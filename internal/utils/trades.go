package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
)

var tradeHeader = []string{
	"symbol", "signal_date", "market_cap", "sector", "status", "signal_high",
	"entry_price", "entry_date", "exit_price", "exit_date", "exit_reason", "months_held",
	"total_return_percent", "cagr_percent", "cmgr_percent", "max_high", "max_high_date",
	"drawdown_percent", "stop_loss_price", "target1_price", "target2_price", "message",
}

// WriteTradesToCSV writes the trade table atomically. Undefined prices and dates are empty.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	rows := make([][]string, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		rows = append(rows, []string{
			t.Symbol,
			formatDate(t.SignalDate),
			t.MarketCap,
			t.Sector,
			string(t.Status),
			formatPrice(t.SignalHigh),
			formatPrice(t.EntryPrice),
			formatDate(t.EntryDate),
			formatPrice(t.ExitPrice),
			formatDate(t.ExitDate),
			string(t.ExitReason),
			strconv.Itoa(t.MonthsHeld),
			formatNumber(t.TotalReturnPct),
			formatNumber(t.CAGRPct),
			formatNumber(t.CMGRPct),
			formatPrice(t.MaxHigh),
			formatDate(t.MaxHighDate),
			formatNumber(t.DrawdownPct),
			formatPrice(t.StopLossPrice),
			formatPrice(t.Target1Price),
			formatPrice(t.Target2Price),
			t.Message,
		})
	}
	return writeCSVAtomic(filename, tradeHeader, rows)
}

// ReadTradesFromCSV reads a trade table written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tbl, err := readTable(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := tbl.require("symbol", "signal_date", "status"); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	trades := make([]domain.Trade, 0, len(tbl.rows))
	for i, rec := range tbl.rows {
		t, err := parseTradeRecord(tbl, rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: %w", filename, i+2, ports.ErrMalformedData, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func parseTradeRecord(tbl *table, rec []string) (domain.Trade, error) {
	t := domain.Trade{
		Symbol:     tbl.get(rec, "symbol"),
		MarketCap:  tbl.get(rec, "market_cap"),
		Sector:     tbl.get(rec, "sector"),
		Status:     domain.TradeStatus(tbl.get(rec, "status")),
		ExitReason: domain.ExitReason(tbl.get(rec, "exit_reason")),
		Message:    tbl.get(rec, "message"),
	}

	var err error
	if t.SignalDate, err = parseDate(tbl.get(rec, "signal_date")); err != nil {
		return t, err
	}

	dates := []struct {
		col string
		dst *time.Time
	}{
		{"entry_date", &t.EntryDate},
		{"exit_date", &t.ExitDate},
		{"max_high_date", &t.MaxHighDate},
	}
	for _, d := range dates {
		if *d.dst, err = parseOptionalDate(tbl.get(rec, d.col)); err != nil {
			return t, fmt.Errorf("column %s: %w", d.col, err)
		}
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{"signal_high", &t.SignalHigh},
		{"entry_price", &t.EntryPrice},
		{"exit_price", &t.ExitPrice},
		{"total_return_percent", &t.TotalReturnPct},
		{"cagr_percent", &t.CAGRPct},
		{"cmgr_percent", &t.CMGRPct},
		{"max_high", &t.MaxHigh},
		{"drawdown_percent", &t.DrawdownPct},
		{"stop_loss_price", &t.StopLossPrice},
		{"target1_price", &t.Target1Price},
		{"target2_price", &t.Target2Price},
	}
	for _, f := range floats {
		if *f.dst, err = parseOptionalFloat(tbl.get(rec, f.col)); err != nil {
			return t, fmt.Errorf("column %s: %w", f.col, err)
		}
	}

	if raw := tbl.get(rec, "months_held"); raw != "" {
		if t.MonthsHeld, err = strconv.Atoi(raw); err != nil {
			return t, fmt.Errorf("column months_held: %w", err)
		}
	}
	return t, nil
}
