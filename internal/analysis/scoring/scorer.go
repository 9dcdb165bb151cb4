// Package scoring reduces detector results into per-category scores, a final
// weighted score and a directional label for one timeframe.
package scoring

import (
	"math"

	"crypto-trader/internal/analysis/detectors"
	"crypto-trader/internal/models"
)

// Direction thresholds on the signed aggregate. The boundary values
// themselves read neutral.
const (
	bullishThreshold = 0.05
	bearishThreshold = -0.05
)

// Category blend for the single composite score. Core technicals dominate;
// ML is a small tie-breaker.
var blendWeights = map[detectors.Category]float64{
	detectors.CategoryCore:      0.40,
	detectors.CategorySMC:       0.25,
	detectors.CategoryPatterns:  0.20,
	detectors.CategorySentiment: 0.10,
	detectors.CategoryML:        0.05,
}

// TimeframeResult is the aggregated outcome of one detector pass over one
// timeframe window.
type TimeframeResult struct {
	Timeframe  models.Timeframe
	Results    []detectors.Result
	Categories map[detectors.Category]float64
	Normalized float64 // signed weighted aggregate in [-1, 1]
	Scaled     float64 // Normalized remapped to [0, 1]
	Direction  models.Direction
}

// Aggregate reduces detector results into a TimeframeResult. Category scores
// and the overall aggregate use the same weighted-average formula
// sum(score*weight)/sum(|weight|); empty or zero-weight sets score 0 rather
// than dividing by zero.
func Aggregate(tf models.Timeframe, results []detectors.Result) *TimeframeResult {
	categories := make(map[detectors.Category]float64, len(blendWeights))
	for _, cat := range detectors.Categories() {
		categories[cat] = weightedAverage(results, func(r detectors.Result) bool {
			return r.Category == cat
		})
	}

	normalized := weightedAverage(results, func(detectors.Result) bool { return true })

	return &TimeframeResult{
		Timeframe:  tf,
		Results:    results,
		Categories: categories,
		Normalized: normalized,
		Scaled:     (normalized + 1) / 2,
		Direction:  Classify(normalized),
	}
}

// Classify labels a signed aggregate score.
func Classify(normalized float64) models.Direction {
	switch {
	case normalized > bullishThreshold:
		return models.Bullish
	case normalized < bearishThreshold:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// Composite blends signed category scores into one number with the fixed
// category allocation.
func Composite(categories map[detectors.Category]float64) float64 {
	var total float64
	for cat, w := range blendWeights {
		total += categories[cat] * w
	}
	return total
}

// SubScore returns the unweighted mean of the named categories' detector scores
// remapped from [-1, 1] to [0, 1]. Categories with no contributing detectors
// read a neutral 0.5.
func SubScore(results []detectors.Result, cats ...detectors.Category) float64 {
	want := make(map[detectors.Category]bool, len(cats))
	for _, c := range cats {
		want[c] = true
	}
	var sum float64
	var n int
	for _, r := range results {
		if want[r.Category] {
			sum += r.Score
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return (sum/float64(n) + 1) / 2
}

func weightedAverage(results []detectors.Result, include func(detectors.Result) bool) float64 {
	var weighted, totalWeight float64
	for _, r := range results {
		if !include(r) {
			continue
		}
		weighted += r.Score * r.Weight
		totalWeight += math.Abs(r.Weight)
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}
