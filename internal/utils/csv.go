package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// WriteBarsToCSV writes monthly bars in the layout read by ReadBarsFromCSV.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	rows := make([][]string, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []string{
			b.Time.Format(dateLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
	}
	return writeCSVAtomic(filename, []string{"date", "open", "high", "low", "close", "volume"}, rows)
}

// ReadBarsFromCSV reads bars written by WriteBarsToCSV. Bar times must be strictly
// increasing; unordered or duplicate dates are ErrMalformedData.
func ReadBarsFromCSV(filename string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tbl, err := readTable(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := tbl.require("date", "open", "high", "low", "close"); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	bars := make([]domain.Bar, 0, len(tbl.rows))
	for i, rec := range tbl.rows {
		line := i + 2
		t, err := parseDate(tbl.get(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: %w", filename, line, ports.ErrMalformedData, err)
		}
		var vals [5]float64
		for k, col := range []string{"open", "high", "low", "close", "volume"} {
			raw := tbl.get(rec, col)
			if raw == "" && col == "volume" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %s: %w: %w", filename, line, col, ports.ErrMalformedData, err)
			}
			vals[k] = v
		}
		bars = append(bars, domain.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]})
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%s: bar times not strictly increasing at line %d: %w", filename, i+2, ports.ErrMalformedData)
		}
	}
	return bars, nil
}

// --- shared helpers ---

// writeCSVAtomic writes to a temporary file in the target directory and renames it into place.
func writeCSVAtomic(filename string, header []string, rows [][]string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filename)
}

// table is a header-indexed CSV body.
type table struct {
	index map[string]int
	rows  [][]string
}

func readTable(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrMalformedData, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header: %w", ports.ErrMalformedData)
	}
	idx := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return &table{index: idx, rows: records[1:]}, nil
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// first returns the first column name among candidates present in the header.
func (t *table) first(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if t.has(c) {
			return c, true
		}
	}
	return "", false
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns %s: %w", strings.Join(missing, ", "), ports.ErrMalformedData)
	}
	return nil
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseDate accepts ISO dates, dd-mm-yyyy signal-list dates and RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "02-01-2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// formatPrice renders a value rounded to two decimals, or empty when undefined.
func formatPrice(v float64) string {
	if v == 0 {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// formatNumber renders a value rounded to two decimals; zero is written as 0.00.
func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDate(s)
}
