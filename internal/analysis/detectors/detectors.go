// Package detectors holds the weighted catalogue of scoring functions that map
// a feature bundle to signed scores across five signal categories.
package detectors

import (
	"sync"

	"crypto-trader/internal/analysis/features"
)

// Category groups detectors for per-category aggregation and the composite
// blend.
type Category string

const (
	CategoryCore      Category = "CORE"
	CategorySMC       Category = "SMC"
	CategoryPatterns  Category = "PATTERNS"
	CategorySentiment Category = "SENTIMENT"
	CategoryML        Category = "ML"
)

// Categories lists all categories in blend order.
func Categories() []Category {
	return []Category{CategoryCore, CategorySMC, CategoryPatterns, CategorySentiment, CategoryML}
}

// ID identifies a detector. The set is closed: weights are configurable,
// detector identities are not.
type ID string

const (
	TrendFollow     ID = "trend_follow"
	Momentum        ID = "momentum"
	MACDCross       ID = "macd_cross"
	BollingerRevert ID = "bollinger_revert"
	ADXStrength     ID = "adx_strength"

	LiquiditySweep ID = "liquidity_sweep"
	OrderBlock     ID = "order_block"
	FairValueGap   ID = "fair_value_gap"

	CandleEngulfing ID = "candle_engulfing"
	Breakout        ID = "breakout"
	ROCAccel        ID = "roc_accel"

	MarketSentiment ID = "market_sentiment"
	NewsSentiment   ID = "news_sentiment"
	WhaleActivity   ID = "whale_activity"

	MLComposite ID = "ml_composite"
	MLMeanRev   ID = "ml_meanrev"
)

// ScoreFunc maps a feature bundle to a signed score in [-1, 1]. Score
// functions must be pure: the same bundle always yields the same score.
type ScoreFunc func(b *features.Bundle) float64

// Detector binds an identity, category and weight to a scoring function.
type Detector struct {
	ID       ID
	Category Category
	Weight   float64
	Score    ScoreFunc
}

// Result is one detector's output for one bundle. Scores are clamped to
// [-1, 1] by the registry before results are handed out.
type Result struct {
	ID       ID
	Category Category
	Weight   float64
	Score    float64
}

// Registry evaluates the closed detector set against feature bundles. Weights
// are swappable between cycles; a running evaluation always sees the weights
// it started with.
type Registry struct {
	mu        sync.RWMutex
	detectors []Detector
}

// NewRegistry builds the full catalogue with the given weights.
func NewRegistry(w Weights) *Registry {
	r := &Registry{}
	r.SetWeights(w)
	return r
}

// SetWeights rebuilds the catalogue with new weights. Detectors with a zero
// weight stay registered and simply contribute nothing to the aggregate.
func (r *Registry) SetWeights(w Weights) {
	defs := []Detector{
		{TrendFollow, CategoryCore, w.get(TrendFollow), scoreTrendFollow},
		{Momentum, CategoryCore, w.get(Momentum), scoreMomentum},
		{MACDCross, CategoryCore, w.get(MACDCross), scoreMACDCross},
		{BollingerRevert, CategoryCore, w.get(BollingerRevert), scoreBollingerRevert},
		{ADXStrength, CategoryCore, w.get(ADXStrength), scoreADXStrength},

		{LiquiditySweep, CategorySMC, w.get(LiquiditySweep), scoreLiquiditySweep},
		{OrderBlock, CategorySMC, w.get(OrderBlock), scoreOrderBlock},
		{FairValueGap, CategorySMC, w.get(FairValueGap), scoreFairValueGap},

		{CandleEngulfing, CategoryPatterns, w.get(CandleEngulfing), scoreCandleEngulfing},
		{Breakout, CategoryPatterns, w.get(Breakout), scoreBreakout},
		{ROCAccel, CategoryPatterns, w.get(ROCAccel), scoreROCAccel},

		{MarketSentiment, CategorySentiment, w.get(MarketSentiment), scoreMarketSentiment},
		{NewsSentiment, CategorySentiment, w.get(NewsSentiment), scoreNewsSentiment},
		{WhaleActivity, CategorySentiment, w.get(WhaleActivity), scoreWhaleActivity},

		{MLComposite, CategoryML, w.get(MLComposite), scoreMLComposite},
		{MLMeanRev, CategoryML, w.get(MLMeanRev), scoreMLMeanRev},
	}

	r.mu.Lock()
	r.detectors = defs
	r.mu.Unlock()
}

// Evaluate runs every detector against the bundle. A panicking detector
// degrades to a neutral 0 score for that detector only; the cycle continues.
// All scores are clamped to [-1, 1].
func (r *Registry) Evaluate(b *features.Bundle) []Result {
	r.mu.RLock()
	defs := r.detectors
	r.mu.RUnlock()

	results := make([]Result, 0, len(defs))
	for _, d := range defs {
		results = append(results, Result{
			ID:       d.ID,
			Category: d.Category,
			Weight:   d.Weight,
			Score:    clamp(safeScore(d.Score, b)),
		})
	}
	return results
}

func safeScore(fn ScoreFunc, b *features.Bundle) (score float64) {
	defer func() {
		if recover() != nil {
			score = 0
		}
	}()
	return fn(b)
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case v != v: // NaN degrades to neutral
		return 0
	}
	return v
}
