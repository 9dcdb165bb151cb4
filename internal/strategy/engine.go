// Package strategy implements the multi-timeframe signal engine: per-timeframe
// scoring, direction voting, confluence, context gating and entry planning.
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-trader/internal/analysis/detectors"
	"crypto-trader/internal/analysis/features"
	"crypto-trader/internal/analysis/scoring"
	"crypto-trader/internal/broker"
	"crypto-trader/internal/models"
)

// Decision thresholds. The bad-news veto and the confluence gate are design
// constants, not tunables.
const (
	strongScore      = 0.65
	confirmScore     = 0.60
	strongScoreSell  = 0.35
	confirmScoreSell = 0.40

	confluencePass = 0.60

	vetoNews      = -0.35
	vetoSentiment = -0.25

	historyBars = 100
)

// TimeframeAnalysis pairs a timeframe's feature bundle with its aggregated
// scores.
type TimeframeAnalysis struct {
	Timeframe models.Timeframe
	Bundle    *features.Bundle
	Result    *scoring.TimeframeResult
}

// Decision is the outcome of one multi-timeframe pass for a symbol.
type Decision struct {
	Symbol     string
	Action     models.Action
	Majority   models.Direction
	Timeframes []*TimeframeAnalysis
	Confluence models.ConfluenceScore
	Context    models.MarketContext
	Vetoed     bool
	Reason     string
	Signal     *models.Signal
	AnalyzedAt time.Time
}

// Engine runs the detector catalogue across three timeframes and votes.
type Engine struct {
	data      broker.MarketData
	sentiment broker.SentimentProvider
	registry  *detectors.Registry
	extractor *features.Extractor
	log       zerolog.Logger
}

// NewEngine wires a strategy engine. The sentiment provider may be nil, in
// which case context stays neutral.
func NewEngine(data broker.MarketData, sentiment broker.SentimentProvider, registry *detectors.Registry, log zerolog.Logger) *Engine {
	return &Engine{
		data:      data,
		sentiment: sentiment,
		registry:  registry,
		extractor: features.NewExtractor(),
		log:       log.With().Str("component", "strategy").Logger(),
	}
}

// Analyze runs one full decision pass for a symbol. A failed timeframe fails
// the whole pass; a failed sentiment fetch does not.
func (e *Engine) Analyze(ctx context.Context, symbol string) (*Decision, error) {
	mctx := e.marketContext(ctx, symbol)

	analyses, err := e.analyzeTimeframes(ctx, symbol, mctx)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		Symbol:     symbol,
		Timeframes: analyses,
		Context:    mctx,
		AnalyzedAt: time.Now(),
	}

	d.Majority, d.Action = vote(analyses)

	// Bad-news veto fires before the confluence check.
	if mctx.News < vetoNews && mctx.Sentiment < vetoSentiment {
		d.Action = models.ActionHold
		d.Vetoed = true
		d.Reason = fmt.Sprintf("context veto: news %.2f, sentiment %.2f", mctx.News, mctx.Sentiment)
		e.log.Info().Str("symbol", symbol).Str("reason", d.Reason).Msg("signal vetoed")
		return d, nil
	}

	d.Confluence = e.confluence(analyses, d.Majority)
	if d.Action != models.ActionHold && !d.Confluence.Passed {
		d.Action = models.ActionHold
		d.Reason = fmt.Sprintf("confluence %.2f below %.2f", d.Confluence.Combined, confluencePass)
	}

	if d.Action != models.ActionHold {
		d.Signal = e.buildSignal(d)
	}

	return d, nil
}

func (e *Engine) marketContext(ctx context.Context, symbol string) models.MarketContext {
	if e.sentiment == nil {
		return models.MarketContext{}
	}
	mctx, err := e.sentiment.GetMarketContext(ctx, symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment fetch failed, using neutral context")
		return models.MarketContext{}
	}
	return mctx
}

// analyzeTimeframes fetches and scores all timeframes concurrently. Outputs
// are merged only after every goroutine finishes.
func (e *Engine) analyzeTimeframes(ctx context.Context, symbol string, mctx models.MarketContext) ([]*TimeframeAnalysis, error) {
	timeframes := models.AnalysisTimeframes()

	var wg sync.WaitGroup
	var mu sync.Mutex
	analyses := make(map[models.Timeframe]*TimeframeAnalysis, len(timeframes))
	var firstErr error

	for _, tf := range timeframes {
		wg.Add(1)
		go func(tf models.Timeframe) {
			defer wg.Done()

			a, err := e.analyzeTimeframe(ctx, symbol, tf, mctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			analyses[tf] = a
		}(tf)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	ordered := make([]*TimeframeAnalysis, 0, len(timeframes))
	for _, tf := range timeframes {
		ordered = append(ordered, analyses[tf])
	}
	return ordered, nil
}

func (e *Engine) analyzeTimeframe(ctx context.Context, symbol string, tf models.Timeframe, mctx models.MarketContext) (*TimeframeAnalysis, error) {
	candles, err := e.data.GetHistory(ctx, symbol, tf, historyBars)
	if err != nil {
		return nil, err
	}

	bundle, err := e.extractor.Extract(symbol, tf, candles, mctx)
	if err != nil {
		return nil, err
	}

	results := e.registry.Evaluate(bundle)
	return &TimeframeAnalysis{
		Timeframe: tf,
		Bundle:    bundle,
		Result:    scoring.Aggregate(tf, results),
	}, nil
}

// vote derives the majority direction and the resulting action. BUY needs a
// bullish majority plus either one timeframe at the strong threshold or two
// at the confirm threshold; SELL mirrors with low scaled scores.
func vote(analyses []*TimeframeAnalysis) (models.Direction, models.Action) {
	counts := map[models.Direction]int{}
	for _, a := range analyses {
		counts[a.Result.Direction]++
	}

	majority := models.Neutral
	switch {
	case counts[models.Bullish] > counts[models.Bearish] && counts[models.Bullish] > counts[models.Neutral]:
		majority = models.Bullish
	case counts[models.Bearish] > counts[models.Bullish] && counts[models.Bearish] > counts[models.Neutral]:
		majority = models.Bearish
	}

	var strong, confirmed int
	for _, a := range analyses {
		s := a.Result.Scaled
		switch majority {
		case models.Bullish:
			if s >= strongScore {
				strong++
			}
			if s >= confirmScore {
				confirmed++
			}
		case models.Bearish:
			if s <= strongScoreSell {
				strong++
			}
			if s <= confirmScoreSell {
				confirmed++
			}
		}
	}

	switch {
	case majority == models.Bullish && (strong >= 1 || confirmed >= 2):
		return majority, models.ActionBuy
	case majority == models.Bearish && (strong >= 1 || confirmed >= 2):
		return majority, models.ActionSell
	default:
		return majority, models.ActionHold
	}
}

// confluence combines the agreement fraction with category sub-scores: ML
// detectors speak for the AI view, the core, SMC and pattern categories
// together for the tech view, and sentiment for the context view.
func (e *Engine) confluence(analyses []*TimeframeAnalysis, majority models.Direction) models.ConfluenceScore {
	var agree int
	var all []detectors.Result
	for _, a := range analyses {
		if a.Result.Direction == majority {
			agree++
		}
		all = append(all, a.Result.Results...)
	}
	agreement := float64(agree) / float64(len(analyses))

	ai := scoring.SubScore(all, detectors.CategoryML)
	tech := scoring.SubScore(all, detectors.CategoryCore, detectors.CategorySMC, detectors.CategoryPatterns)
	context := scoring.SubScore(all, detectors.CategorySentiment)

	combined := agreement * (ai*0.5 + tech*0.35 + context*0.15)

	return models.ConfluenceScore{
		Agreement:    agreement,
		AIScore:      ai,
		TechScore:    tech,
		ContextScore: context,
		Combined:     combined,
		Passed:       combined >= confluencePass,
	}
}

func (e *Engine) buildSignal(d *Decision) *models.Signal {
	medium := d.Timeframes[1].Bundle
	entry := medium.LastClose
	plan := BuildEntryPlan(d.Action, entry, medium.ATR, d.Context)

	confidence := meanScaled(d.Timeframes)
	if d.Action == models.ActionSell {
		confidence = 1 - confidence
	}

	sig := &models.Signal{
		ID:         models.NewSignalID(),
		Symbol:     d.Symbol,
		Type:       d.Action.Side(),
		EntryPrice: entry,
		StopLoss:   plan.StopLoss,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("%s majority across %d timeframes, confluence %.2f",
			d.Majority, len(d.Timeframes), d.Confluence.Combined),
		Source:    "strategy",
		Plan:      plan,
		CreatedAt: d.AnalyzedAt,
	}
	if len(plan.Targets) > 0 {
		sig.TargetPrice = plan.Targets[0].Price
	}

	e.log.Info().
		Str("symbol", d.Symbol).
		Str("type", string(sig.Type)).
		Float64("entry", entry).
		Float64("confidence", confidence).
		Msg("strategy signal")

	return sig
}

func meanScaled(analyses []*TimeframeAnalysis) float64 {
	var sum float64
	for _, a := range analyses {
		sum += a.Result.Scaled
	}
	return sum / float64(len(analyses))
}

// SetWeights hot-reloads detector weights for subsequent passes.
func (e *Engine) SetWeights(w detectors.Weights) {
	e.registry.SetWeights(w)
}
