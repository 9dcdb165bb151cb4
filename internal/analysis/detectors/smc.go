package detectors

import (
	"crypto-trader/internal/analysis/features"
	"crypto-trader/internal/models"
)

// Smart-money-concept detectors read raw bar structure from the recent window.
// They return 0 whenever the window is too short for the pattern.

// scoreLiquiditySweep looks for a wick through the prior window extreme that
// closes back inside. Sweeping the lows and reclaiming them is bullish.
func scoreLiquiditySweep(b *features.Bundle) float64 {
	n := len(b.Recent)
	if n < 4 {
		return 0
	}
	last := b.Recent[n-1]
	prior := b.Recent[:n-1]

	priorLow, priorHigh := windowExtremes(prior)

	if last.Low < priorLow && last.Close > priorLow {
		return 0.8
	}
	if last.High > priorHigh && last.Close < priorHigh {
		return -0.8
	}
	return 0
}

// scoreOrderBlock scores an impulsive move away from an opposing candle: a
// strong bullish bar following a bearish one marks demand, and vice versa.
func scoreOrderBlock(b *features.Bundle) float64 {
	n := len(b.Recent)
	if n < 2 {
		return 0
	}
	prev, last := b.Recent[n-2], b.Recent[n-1]

	prevRange := prev.High - prev.Low
	if prevRange <= 0 {
		return 0
	}
	lastBody := last.Close - last.Open

	// Impulse must exceed the prior bar's full range.
	if prev.Close < prev.Open && lastBody > prevRange {
		return 0.7
	}
	if prev.Close > prev.Open && -lastBody > prevRange {
		return -0.7
	}
	return 0
}

// scoreFairValueGap detects a three-bar imbalance in the recent window: the
// first bar's high below the third bar's low leaves a bullish gap.
func scoreFairValueGap(b *features.Bundle) float64 {
	n := len(b.Recent)
	for i := n - 1; i >= 2; i-- {
		first, third := b.Recent[i-2], b.Recent[i]
		if first.High < third.Low {
			return 0.6
		}
		if first.Low > third.High {
			return -0.6
		}
	}
	return 0
}

func windowExtremes(candles []models.Candle) (low, high float64) {
	low, high = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		if c.Low < low {
			low = c.Low
		}
		if c.High > high {
			high = c.High
		}
	}
	return low, high
}
