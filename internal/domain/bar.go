package domain

import "time"

// Bar represents a single monthly OHLC candle.
type Bar struct {
	Time   time.Time // Start of the period
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64 // Carried through from providers; not used by the strategy
}

// HABar is a Bar extended with its Heikin-Ashi representation and shape attributes.
type HABar struct {
	Bar

	HAOpen  float64
	HAClose float64
	HAHigh  float64
	HALow   float64

	Body        float64 // |HAClose - HAOpen|
	UpperShadow float64 // HAHigh - max(HAOpen, HAClose)
	LowerShadow float64 // min(HAOpen, HAClose) - HALow
	TotalRange  float64 // HAHigh - HALow
	IsRedDoji   bool    // Bearish long-legged doji
}

// IsBullish reports whether the Heikin-Ashi candle closed above its open.
func (b HABar) IsBullish() bool {
	return b.HAClose > b.HAOpen
}

// Instrument is a reference-data row describing a tradable symbol.
type Instrument struct {
	Symbol    string `yaml:"symbol"`
	MarketCap string `yaml:"market_cap"`
	Sector    string `yaml:"sector"`
}
