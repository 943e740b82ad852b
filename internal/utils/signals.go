package utils

import (
	"fmt"
	"os"
	"strings"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
)

var signalHeader = []string{
	"Date", "Stock_Ticker", "Market_Cap", "HA_Close", "HA_Open", "EMA_89",
	"Breakout_Strength_Percent", "Signal_High", "Signal_Close", "Regular_Close", "Sector",
}

// WriteSignalsToCSV writes the signal table atomically in the given order.
func WriteSignalsToCSV(signals []domain.Signal, filename string) error {
	rows := make([][]string, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, []string{
			formatDate(s.Date),
			s.Symbol,
			s.MarketCap,
			formatNumber(s.HAClose),
			formatNumber(s.HAOpen),
			formatNumber(s.LongEMA),
			formatNumber(s.BreakoutStrength),
			formatNumber(s.High),
			formatNumber(s.Close),
			formatNumber(s.Close),
			s.Sector,
		})
	}
	return writeCSVAtomic(filename, signalHeader, rows)
}

// ReadSignalRowsFromCSV reads a signal list. It accepts the classic list layout
// (date dd-mm-yyyy, symbol, marketcapname, sector) and the table written by WriteSignalsToCSV.
func ReadSignalRowsFromCSV(filename string) ([]domain.SignalRow, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tbl, err := readTable(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	dateCol, okDate := tbl.first("date")
	symCol, okSym := tbl.first("symbol", "stock_ticker")
	if !okDate || !okSym {
		return nil, fmt.Errorf("read %s: need date and symbol columns: %w", filename, ports.ErrMalformedData)
	}
	capCol, _ := tbl.first("marketcapname", "market_cap")
	sectorCol, _ := tbl.first("sector")

	rows := make([]domain.SignalRow, 0, len(tbl.rows))
	for i, rec := range tbl.rows {
		symbol := strings.ToUpper(tbl.get(rec, symCol))
		if symbol == "" {
			continue
		}
		date, err := parseDate(tbl.get(rec, dateCol))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: %w", filename, i+2, ports.ErrMalformedData, err)
		}
		rows = append(rows, domain.SignalRow{
			Symbol:    symbol,
			Date:      date,
			MarketCap: tbl.get(rec, capCol),
			Sector:    tbl.get(rec, sectorCol),
		})
	}
	return rows, nil
}
