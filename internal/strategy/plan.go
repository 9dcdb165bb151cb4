package strategy

import (
	"math"

	"crypto-trader/internal/models"
)

// Entry plan parameters. Stop distance scales with volatility; targets ladder
// out at fixed R multiples.
const (
	atrStopMultiple = 1.2
	accountRisk     = 0.02

	leverageMin       = 2.0
	leverageMax       = 10.0
	liquidationBuffer = 0.65
	badContextScale   = 0.7
	badContextLevel   = -0.3
)

var (
	targetMultiples = []float64{2, 3, 4}
	ladderFractions = []float64{0.40, 0.35, 0.25}
)

// BuildEntryPlan derives stop, laddered targets and leverage from entry
// price, volatility and market context.
func BuildEntryPlan(action models.Action, entry, atr float64, mctx models.MarketContext) *models.EntryPlan {
	sign := 1.0
	if action == models.ActionSell {
		sign = -1.0
	}

	stopDistance := atr * atrStopMultiple
	stop := entry - sign*stopDistance

	targets := make([]models.LadderTarget, len(targetMultiples))
	for i, r := range targetMultiples {
		targets[i] = models.LadderTarget{
			Price:    entry + sign*stopDistance*r,
			Fraction: ladderFractions[i],
		}
	}

	return &models.EntryPlan{
		StopLoss: stop,
		Targets:  targets,
		Trailing: models.TrailingConfig{
			Enabled: true,
			Percent: stopDistance / entry * 100,
		},
		Leverage: planLeverage(entry, stopDistance, mctx),
	}
}

// planLeverage sizes leverage so the account risk matches the stop distance,
// clamped to the allowed band, buffered against liquidation, and reduced
// further in a hostile context.
func planLeverage(entry, stopDistance float64, mctx models.MarketContext) float64 {
	if entry <= 0 || stopDistance <= 0 {
		return leverageMin * liquidationBuffer
	}

	stopFraction := stopDistance / entry
	raw := accountRisk / stopFraction
	clamped := math.Min(math.Max(raw, leverageMin), leverageMax)

	leverage := clamped * liquidationBuffer
	if mctx.Sentiment < badContextLevel || mctx.News < badContextLevel {
		leverage *= badContextScale
	}

	return math.Round(leverage*10) / 10
}
