package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUniverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	content := `
instruments:
  - symbol: reliance
    market_cap: Large Cap
    sector: Energy
  - symbol: " tcs "
    market_cap: Large Cap
    sector: IT
  - symbol: RELIANCE
    market_cap: Mid Cap
  - symbol: ZOMATO
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := LoadUniverse(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Instrument{
		{Symbol: "RELIANCE", MarketCap: "Large Cap", Sector: "Energy"},
		{Symbol: "TCS", MarketCap: "Large Cap", Sector: "IT"},
		{Symbol: "ZOMATO"},
	}, got)
}

func TestParseUniverse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "instruments: [unclosed"},
		{"missing symbol", "instruments:\n  - sector: IT\n"},
		{"empty list", "instruments: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUniverse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ports.ErrMalformedData)
		})
	}

	_, err := LoadUniverse(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
