package detectors

import (
	"math"

	"crypto-trader/internal/analysis/features"
	"crypto-trader/internal/models"
)

// scoreTrendFollow rewards alignment with the classified trend, scaled up by
// trend strength from ADX.
func scoreTrendFollow(b *features.Bundle) float64 {
	strength := math.Min(b.ADX/50, 1)
	switch b.Trend {
	case models.Bullish:
		return 0.6 + 0.4*strength
	case models.Bearish:
		return -0.6 - 0.4*strength
	default:
		return 0
	}
}

// scoreMomentum maps RSI around its midpoint, damped at the extremes where
// continuation is less likely.
func scoreMomentum(b *features.Bundle) float64 {
	score := (b.RSI - 50) / 50
	if b.RSI > 80 || b.RSI < 20 {
		score *= 0.5
	}
	return score
}

// scoreMACDCross scores the histogram sign, with extra weight when the MACD
// line confirms on the same side of zero.
func scoreMACDCross(b *features.Bundle) float64 {
	if b.MACDHist == 0 {
		return 0
	}
	score := 0.5
	if b.MACDHist < 0 {
		score = -0.5
	}
	if b.MACD > 0 && b.MACDHist > 0 {
		score += 0.3
	}
	if b.MACD < 0 && b.MACDHist < 0 {
		score -= 0.3
	}
	return score
}

// scoreBollingerRevert is a mean-reversion read: price stretched toward a band
// scores against the stretch.
func scoreBollingerRevert(b *features.Bundle) float64 {
	half := b.BollUpper - b.BollMiddle
	if half <= 0 {
		return 0
	}
	position := (b.LastClose - b.BollMiddle) / half
	return -position * 0.8
}

// scoreADXStrength is directional: the dominant DI side wins, scaled by trend
// strength. A flat market (ADX < 20) contributes little either way.
func scoreADXStrength(b *features.Bundle) float64 {
	strength := math.Min(b.ADX/50, 1)
	if b.ADX < 20 {
		strength *= 0.3
	}
	if b.PlusDI > b.MinusDI {
		return strength
	}
	if b.MinusDI > b.PlusDI {
		return -strength
	}
	return 0
}
