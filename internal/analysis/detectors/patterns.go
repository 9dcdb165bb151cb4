package detectors

import (
	"crypto-trader/internal/analysis/features"
)

// scoreCandleEngulfing detects two-bar engulfing reversals: the latest body
// fully wraps the prior, opposite-colored body.
func scoreCandleEngulfing(b *features.Bundle) float64 {
	n := len(b.Recent)
	if n < 2 {
		return 0
	}
	prev, last := b.Recent[n-2], b.Recent[n-1]

	bullish := last.Close > last.Open && prev.Close < prev.Open &&
		last.Open <= prev.Close && last.Close >= prev.Open
	if bullish {
		return 0.8
	}
	bearish := last.Close < last.Open && prev.Close > prev.Open &&
		last.Open >= prev.Close && last.Close <= prev.Open
	if bearish {
		return -0.8
	}
	return 0
}

// scoreBreakout rewards a close through the nearest level, stronger when
// volume expands behind it.
func scoreBreakout(b *features.Bundle) float64 {
	confirm := 0.6
	if b.VolumeRatio >= 1.5 {
		confirm = 1.0
	}
	if b.LastClose > b.Resistance {
		return confirm
	}
	if b.LastClose < b.Support {
		return -confirm
	}
	return 0
}

// scoreROCAccel maps the rate of change onto [-1, 1]; a 5% move saturates.
func scoreROCAccel(b *features.Bundle) float64 {
	return b.ROC / 5
}
