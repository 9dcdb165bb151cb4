// Package aggregator reconciles the strategy and advanced engines into at
// most one trading signal per symbol per cycle.
package aggregator

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"crypto-trader/internal/advanced"
	"crypto-trader/internal/models"
	"crypto-trader/internal/risk"
	"crypto-trader/internal/strategy"
	"crypto-trader/internal/stream"
)

// Standalone thresholds: what each engine needs to emit without agreement
// from the other.
const (
	agreementBoost       = 1.2
	standaloneConfluence = 0.70
)

// Outcome is the aggregated result of one decision cycle for a symbol. When
// risk denies trading, the signal (if any) is analytical only.
type Outcome struct {
	Symbol     string
	Decision   *strategy.Decision
	Evaluation *advanced.Evaluation
	Signal     *models.Signal
	Tradeable  bool
	Rule       string
	DenyReason string
}

// Aggregator joins the two signal engines under the risk manager's gate.
type Aggregator struct {
	strategy *strategy.Engine
	advanced *advanced.Engine
	risk     *risk.Manager
	hub      *stream.Hub
	log      zerolog.Logger
}

// New creates an aggregator. The hub may be nil when no one listens.
func New(s *strategy.Engine, a *advanced.Engine, r *risk.Manager, hub *stream.Hub, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		strategy: s,
		advanced: a,
		risk:     r,
		hub:      hub,
		log:      log.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate runs one decision cycle. The risk check happens before either
// engine may produce a tradeable output; the engines themselves run
// concurrently and are joined before resolution.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string) (*Outcome, error) {
	out := &Outcome{Symbol: symbol}

	tradeable, denyReason := a.risk.CanTrade(symbol)
	out.Tradeable = tradeable
	out.DenyReason = denyReason
	if !tradeable {
		a.log.Info().Str("symbol", symbol).Str("reason", denyReason).Msg("risk denied, analytical pass only")
		if a.hub != nil {
			a.hub.Emit(stream.EventRiskDenied, symbol, denyReason)
		}
	}

	var wg sync.WaitGroup
	var decision *strategy.Decision
	var evaluation *advanced.Evaluation
	var decisionErr, evalErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		decision, decisionErr = a.strategy.Analyze(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		evaluation, evalErr = a.advanced.Evaluate(ctx, symbol)
	}()
	wg.Wait()

	if decisionErr != nil {
		return nil, decisionErr
	}
	if evalErr != nil {
		return nil, evalErr
	}

	out.Decision = decision
	out.Evaluation = evaluation
	out.Signal, out.Rule = resolve(decision, evaluation)

	if out.Signal != nil && a.hub != nil {
		a.hub.Emit(stream.EventSignal, symbol, out.Signal)
	}

	return out, nil
}

// resolve applies the reconciliation rules in priority order.
func resolve(d *strategy.Decision, ev *advanced.Evaluation) (*models.Signal, string) {
	stratSig := d.Signal
	advSig := ev.Signal

	switch {
	case stratSig != nil && advSig != nil && stratSig.Type == advSig.Type:
		boosted := *advSig
		boosted.Confidence = math.Min(boosted.Confidence*agreementBoost, 1.0)
		boosted.Source = "aggregated"
		boosted.Reasoning = fmt.Sprintf("%s; confirmed by strategy engine (confluence %.2f)",
			advSig.Reasoning, d.Confluence.Combined)
		return &boosted, "agreement"

	case stratSig != nil && advSig != nil:
		if stratSig.Confidence > advSig.Confidence {
			return stratSig, "conflict: strategy wins"
		}
		return advSig, "conflict: advanced wins"

	case advSig != nil && ev.Total >= advanced.StrongTotal:
		return advSig, "advanced standalone"

	case stratSig != nil && d.Confluence.Combined >= standaloneConfluence:
		return stratSig, "strategy standalone"
	}

	return nil, "no signal"
}
