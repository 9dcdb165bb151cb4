package advanced

import (
	"math"

	"crypto-trader/internal/analysis/features"
	"crypto-trader/internal/models"
)

// voteSet collects the three directional sub-checks used for the 2-of-3 rule.
type voteSet struct {
	priceAction models.Direction
	indicators  models.Direction
	trend       models.Direction
}

// tally returns the winning direction and its vote count. A direction needs
// two of three votes; anything less reads neutral.
func (v voteSet) tally() (models.Direction, int) {
	counts := map[models.Direction]int{}
	for _, d := range []models.Direction{v.priceAction, v.indicators, v.trend} {
		counts[d]++
	}
	if counts[models.Bullish] >= requiredVotes {
		return models.Bullish, counts[models.Bullish]
	}
	if counts[models.Bearish] >= requiredVotes {
		return models.Bearish, counts[models.Bearish]
	}
	best := counts[models.Bullish]
	if counts[models.Bearish] > best {
		best = counts[models.Bearish]
	}
	return models.Neutral, best
}

// scoreLayers evaluates the five layers against one feature bundle and
// records the directional votes as it goes.
func scoreLayers(b *features.Bundle) (Layers, voteSet) {
	var l Layers
	var v voteSet

	l.PriceAction, v.priceAction = scorePriceAction(b)
	l.Indicators, v.indicators = scoreIndicators(b)
	l.Alignment = scoreAlignment(b)
	l.Volume = scoreVolume(b)
	l.RiskQuality = scoreRiskQuality(b)
	v.trend = b.Trend

	return l, v
}

// scorePriceAction reads trend plus market structure, up to 30 points.
func scorePriceAction(b *features.Bundle) (float64, models.Direction) {
	score := 6.0
	direction := models.Neutral

	switch b.Trend {
	case models.Bullish:
		score = 18
		direction = models.Bullish
	case models.Bearish:
		score = 18
		direction = models.Bearish
	}

	if (direction == models.Bullish && b.HigherHighs && b.HigherLows) ||
		(direction == models.Bearish && b.LowerHighs && b.LowerLows) {
		score += 8
	}
	if (direction == models.Bullish && b.BullishBody()) ||
		(direction == models.Bearish && !b.BullishBody()) {
		score += 4
	}
	return math.Min(score, weightPriceAction), direction
}

// scoreIndicators combines RSI zone, MACD pressure and ADX strength, up to 25
// points.
func scoreIndicators(b *features.Bundle) (float64, models.Direction) {
	score := 0.0
	bias := 0

	switch {
	case b.RSI > 55 && b.RSI < 75:
		score += 9
		bias++
	case b.RSI < 45 && b.RSI > 25:
		score += 9
		bias--
	default:
		score += 3
	}

	if b.MACDHist > 0 {
		score += 8
		bias++
	} else if b.MACDHist < 0 {
		score += 8
		bias--
	}

	if b.ADX >= 25 {
		score += 8
	} else if b.ADX >= 20 {
		score += 4
	}

	direction := models.Neutral
	if bias > 0 {
		direction = models.Bullish
	} else if bias < 0 {
		direction = models.Bearish
	}
	return math.Min(score, weightIndicators), direction
}

// scoreAlignment is the single-timeframe proxy for timeframe agreement: three
// independent reads of direction must line up, up to 20 points.
func scoreAlignment(b *features.Bundle) float64 {
	checks := []bool{
		b.LastClose > b.SMA20,
		b.SMA20 > b.SMA50,
		b.MACDHist > 0,
	}
	up := 0
	for _, c := range checks {
		if c {
			up++
		}
	}
	// Full agreement either way scores full marks.
	switch up {
	case 3, 0:
		return 20
	case 2, 1:
		return 12
	}
	return 4
}

// scoreVolume rewards expansion behind the move, up to 15 points.
func scoreVolume(b *features.Bundle) float64 {
	switch {
	case b.VolumeRatio >= 1.5:
		return 15
	case b.VolumeRatio >= 1.0:
		return 9
	default:
		return 4
	}
}

// scoreRiskQuality checks how much room the trade has before the opposing
// level relative to volatility, up to 10 points.
func scoreRiskQuality(b *features.Bundle) float64 {
	if b.ATR <= 0 {
		return 0
	}
	room := b.Resistance - b.LastClose
	if b.Trend == models.Bearish {
		room = b.LastClose - b.Support
	}
	multiples := room / b.ATR
	switch {
	case multiples >= 4:
		return 10
	case multiples >= 2.5:
		return 6
	case multiples >= 1:
		return 3
	default:
		return 0
	}
}
