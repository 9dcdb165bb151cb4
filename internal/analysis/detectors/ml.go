package detectors

import (
	"math"

	"crypto-trader/internal/analysis/features"
	"crypto-trader/internal/models"
)

// The ML detectors are fixed linear composites over the feature bundle,
// standing in for externally trained models. They stay deterministic so the
// registry's purity contract holds.

// scoreMLComposite blends trend, momentum and MACD pressure.
func scoreMLComposite(b *features.Bundle) float64 {
	trend := 0.0
	switch b.Trend {
	case models.Bullish:
		trend = 1
	case models.Bearish:
		trend = -1
	}

	momentum := (b.RSI - 50) / 50

	macd := 0.0
	if b.LastClose != 0 {
		macd = math.Tanh(b.MACDHist / b.LastClose * 100)
	}

	return 0.4*trend + 0.3*momentum + 0.3*macd
}

// scoreMLMeanRev bets against Bollinger stretch confirmed by the stochastic.
func scoreMLMeanRev(b *features.Bundle) float64 {
	half := b.BollUpper - b.BollMiddle
	if half <= 0 {
		return 0
	}
	stretch := (b.LastClose - b.BollMiddle) / half
	stochBias := (b.StochK - 50) / 50

	return -0.6*stretch - 0.4*stochBias
}
