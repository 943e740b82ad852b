// Package refdata loads instrument reference data (symbol, market-cap bucket, sector).
package refdata

import (
	"fmt"
	"os"
	"strings"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"

	"gopkg.in/yaml.v3"
)

// universeFile is the YAML layout of a universe file.
type universeFile struct {
	Instruments []domain.Instrument `yaml:"instruments"`
}

// LoadUniverse reads the instrument list from a YAML file.
// Symbols are upper-cased; the first occurrence of a duplicated symbol wins.
func LoadUniverse(path string) ([]domain.Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	return ParseUniverse(data)
}

// ParseUniverse decodes universe YAML.
func ParseUniverse(data []byte) ([]domain.Instrument, error) {
	var f universeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse universe: %w: %w", ports.ErrMalformedData, err)
	}

	seen := make(map[string]struct{}, len(f.Instruments))
	out := make([]domain.Instrument, 0, len(f.Instruments))
	for i, inst := range f.Instruments {
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if inst.Symbol == "" {
			return nil, fmt.Errorf("universe entry %d has no symbol: %w", i+1, ports.ErrMalformedData)
		}
		if _, dup := seen[inst.Symbol]; dup {
			continue
		}
		seen[inst.Symbol] = struct{}{}
		inst.MarketCap = strings.TrimSpace(inst.MarketCap)
		inst.Sector = strings.TrimSpace(inst.Sector)
		out = append(out, inst)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("universe is empty: %w", ports.ErrMalformedData)
	}
	return out, nil
}
