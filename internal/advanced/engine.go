// Package advanced implements the independent 5-layer signal scorer used as a
// cross-check against the multi-timeframe strategy engine.
package advanced

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-trader/internal/analysis/features"
	"crypto-trader/internal/broker"
	"crypto-trader/internal/models"
)

// Layer weights sum to 100. A candidate needs MinTotal to be considered and
// StrongTotal to stand alone without strategy-engine agreement.
const (
	weightPriceAction = 30.0
	weightIndicators  = 25.0
	weightAlignment   = 20.0
	weightVolume      = 15.0
	weightRiskQuality = 10.0

	MinTotal    = 75.0
	StrongTotal = 85.0

	minRiskReward  = 3.0
	atrStopMult    = 1.5
	cooldownPeriod = 4 * time.Hour

	requiredVotes = 2
	historyBars   = 100
)

// Layers holds the five scored layers of one evaluation.
type Layers struct {
	PriceAction float64
	Indicators  float64
	Alignment   float64
	Volume      float64
	RiskQuality float64
}

// Total sums the layer scores.
func (l Layers) Total() float64 {
	return l.PriceAction + l.Indicators + l.Alignment + l.Volume + l.RiskQuality
}

// Evaluation is the full outcome of one advanced pass, emitted signal or not.
type Evaluation struct {
	Symbol      string
	Layers      Layers
	Total       float64
	Direction   models.Direction
	Votes       int
	RiskReward  float64
	Signal      *models.Signal
	Reason      string // why no signal was emitted
	EvaluatedAt time.Time
}

// Engine scores a single timeframe through five layers with its own local
// cooldown, independent of the risk manager's.
type Engine struct {
	data      broker.MarketData
	extractor *features.Extractor
	log       zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

// NewEngine creates an advanced signal engine.
func NewEngine(data broker.MarketData, log zerolog.Logger) *Engine {
	return &Engine{
		data:      data,
		extractor: features.NewExtractor(),
		log:       log.With().Str("component", "advanced").Logger(),
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
}

// Evaluate runs one advanced pass for a symbol on the medium timeframe.
func (e *Engine) Evaluate(ctx context.Context, symbol string) (*Evaluation, error) {
	candles, err := e.data.GetHistory(ctx, symbol, models.TimeframeMedium, historyBars)
	if err != nil {
		return nil, err
	}
	bundle, err := e.extractor.Extract(symbol, models.TimeframeMedium, candles, models.MarketContext{})
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Symbol:      symbol,
		EvaluatedAt: e.now(),
	}

	var votes voteSet
	ev.Layers, votes = scoreLayers(bundle)
	ev.Total = ev.Layers.Total()
	ev.Direction, ev.Votes = votes.tally()

	entry := bundle.LastClose
	stop, target := planLevels(ev.Direction, bundle)
	ev.RiskReward = riskReward(entry, stop, target)

	if ok, reason := e.gate(symbol, ev.Total, ev.Votes, ev.Direction, ev.RiskReward); !ok {
		ev.Reason = reason
		return ev, nil
	}

	ev.Signal = e.buildSignal(ev, entry, stop, target)
	e.armCooldown(symbol)

	return ev, nil
}

// gate applies the emission rules in order: score floor, direction votes,
// risk-reward floor, local cooldown.
func (e *Engine) gate(symbol string, total float64, votes int, direction models.Direction, rr float64) (bool, string) {
	if total < MinTotal {
		return false, fmt.Sprintf("total %.0f below %.0f", total, MinTotal)
	}
	if direction == models.Neutral || votes < requiredVotes {
		return false, fmt.Sprintf("only %d of 3 direction votes", votes)
	}
	if rr < minRiskReward {
		return false, fmt.Sprintf("risk-reward %.1f below %.1f", rr, minRiskReward)
	}
	if until, active := e.cooldownUntil(symbol); active {
		return false, fmt.Sprintf("cooldown until %s", until.Format(time.RFC3339))
	}
	return true, ""
}

func (e *Engine) cooldownUntil(symbol string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.cooldowns[symbol]
	if !ok || e.now().After(until) {
		return time.Time{}, false
	}
	return until, true
}

func (e *Engine) armCooldown(symbol string) {
	e.mu.Lock()
	e.cooldowns[symbol] = e.now().Add(cooldownPeriod)
	e.mu.Unlock()
}

func (e *Engine) buildSignal(ev *Evaluation, entry, stop, target float64) *models.Signal {
	sigType := models.SignalBuy
	if ev.Direction == models.Bearish {
		sigType = models.SignalSell
	}

	sig := &models.Signal{
		ID:          models.NewSignalID(),
		Symbol:      ev.Symbol,
		Type:        sigType,
		EntryPrice:  entry,
		TargetPrice: target,
		StopLoss:    stop,
		Confidence:  ev.Total / 100,
		Reasoning: fmt.Sprintf("advanced score %.0f/100, %d/3 votes, R:R %.1f",
			ev.Total, ev.Votes, ev.RiskReward),
		Source:    "advanced",
		CreatedAt: ev.EvaluatedAt,
	}

	e.log.Info().
		Str("symbol", ev.Symbol).
		Str("type", string(sigType)).
		Float64("total", ev.Total).
		Float64("rr", ev.RiskReward).
		Msg("advanced signal")

	return sig
}

// planLevels places the stop at a volatility multiple and targets the nearest
// opposing level, falling back to a volatility multiple when the level would
// make the trade unmeasurable.
func planLevels(direction models.Direction, b *features.Bundle) (stop, target float64) {
	entry := b.LastClose
	stopDistance := b.ATR * atrStopMult

	if direction == models.Bearish {
		stop = entry + stopDistance
		target = b.Support
		if target >= entry {
			target = entry - stopDistance*4
		}
	} else {
		stop = entry - stopDistance
		target = b.Resistance
		if target <= entry {
			target = entry + stopDistance*4
		}
	}
	return stop, target
}

func riskReward(entry, stop, target float64) float64 {
	stopDistance := math.Abs(entry - stop)
	if stopDistance == 0 {
		return 0
	}
	return math.Abs(target-entry) / stopDistance
}
