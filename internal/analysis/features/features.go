// Package features converts a window of price bars into the fixed feature
// bundle consumed by the detector registry.
package features

import (
	"crypto-trader/internal/models"
)

// Bundle is a derived, read-only snapshot of technical features computed once
// per (symbol, timeframe, bar window). It lives for a single scoring pass and
// is recomputed fresh each cycle, never mutated.
type Bundle struct {
	Symbol    string
	Timeframe models.Timeframe

	Trend models.Direction

	// Market structure over the recent window.
	HigherHighs bool
	HigherLows  bool
	LowerHighs  bool
	LowerLows   bool

	// Oscillators.
	RSI    float64
	StochK float64
	StochD float64
	ROC    float64

	// MACD triple.
	MACD       float64
	MACDSignal float64
	MACDHist   float64

	// Moving averages.
	SMA20 float64
	SMA50 float64
	EMA12 float64
	EMA26 float64

	// Bollinger triple.
	BollUpper  float64
	BollMiddle float64
	BollLower  float64

	ATR         float64
	ADX         float64
	PlusDI      float64
	MinusDI     float64
	VolumeRatio float64

	Support    float64
	Resistance float64

	LastClose float64
	PrevClose float64
	LastBar   models.Candle

	// Recent holds the last bars of the window, newest last, for
	// bar-pattern detectors.
	Recent []models.Candle

	// External market context, neutral (zero) when the provider is
	// unavailable.
	Context models.MarketContext
}

// BullishBody reports whether the latest bar closed above its open.
func (b *Bundle) BullishBody() bool {
	return b.LastBar.Close > b.LastBar.Open
}

// ATRFraction returns ATR as a fraction of the last close, 0 when undefined.
func (b *Bundle) ATRFraction() float64 {
	if b.LastClose == 0 {
		return 0
	}
	return b.ATR / b.LastClose
}
