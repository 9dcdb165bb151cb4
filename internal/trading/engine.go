// Package trading runs the auto-trade execution loop: it polls the signal
// aggregator, sizes and places orders under the risk manager's constraints,
// and monitors open positions for stop, target, and trailing-stop exits.
package trading

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-trader/internal/aggregator"
	"crypto-trader/internal/broker"
	"crypto-trader/internal/config"
	"crypto-trader/internal/errors"
	"crypto-trader/internal/logging"
	"crypto-trader/internal/models"
	"crypto-trader/internal/risk"
	"crypto-trader/internal/security"
	"crypto-trader/internal/stream"
	"crypto-trader/pkg/utils"
)

// State is the engine lifecycle state.
type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
)

const housekeepingInterval = time.Minute

// quoteAsset is the settlement asset used for balance queries.
const quoteAsset = "USDT"

// SignalSource produces at most one decision outcome per symbol per cycle.
type SignalSource interface {
	Aggregate(ctx context.Context, symbol string) (*aggregator.Outcome, error)
}

// Engine is the top-level execution state machine. It owns three periodic
// loops while running: the signal cycle, the position monitor, and
// housekeeping. All position-set mutation is serialized behind one mutex
// shared by the signal and monitor loops.
type Engine struct {
	cfg    func() *config.Config
	source SignalSource
	risk   *risk.Manager
	trader broker.Trader
	data   broker.MarketData
	hub    *stream.Hub
	audit  *security.AuditLogger
	log    zerolog.Logger

	mu        sync.Mutex
	state     State
	positions map[string]*tracked
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewEngine creates a stopped engine. The config function is called at the
// start of every cycle so hot reloads take effect between cycles, never
// within one. The audit logger may be nil.
func NewEngine(cfg func() *config.Config, source SignalSource, rm *risk.Manager, trader broker.Trader, data broker.MarketData, hub *stream.Hub, audit *security.AuditLogger, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		source:    source,
		risk:      rm,
		trader:    trader,
		data:      data,
		hub:       hub,
		audit:     audit,
		log:       log.With().Str("component", "trading").Logger(),
		state:     StateStopped,
		positions: make(map[string]*tracked),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start transitions Stopped → Running and launches the periodic loops.
// Starting a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateRunning
	e.stop = make(chan struct{})
	stop := e.stop
	cfg := e.cfg()
	e.mu.Unlock()

	e.wg.Add(3)
	go e.loop(stop, cfg.SignalInterval(), e.signalCycle)
	go e.loop(stop, cfg.MonitorInterval(), e.monitorCycle)
	go e.loop(stop, housekeepingInterval, e.housekeeping)

	e.log.Info().Strs("symbols", cfg.Trading.Symbols).Str("mode", cfg.Trading.Mode).Msg("engine started")
	e.publish(stream.EventStarted, "", cfg.Trading.Symbols)
	if e.audit != nil {
		e.audit.Log(context.Background(), security.AuditEvent{
			EventType: security.AuditEngineStarted,
			Success:   true,
		})
	}
}

// Stop transitions Running → Stopped. It cancels the periodic timers and
// waits for any in-flight cycle to finish before returning. Stopping a
// stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()

	e.log.Info().Msg("engine stopped")
	e.publish(stream.EventStopped, "", nil)
	if e.audit != nil {
		e.audit.Log(context.Background(), security.AuditEvent{
			EventType: security.AuditEngineStopped,
			Success:   true,
		})
	}
}

// loop runs fn on a fixed cadence until the stop channel closes. A cycle in
// progress always runs to completion; Stop waits for it.
func (e *Engine) loop(stop <-chan struct{}, interval time.Duration, fn func()) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// signalCycle runs one decision pass over the configured symbols. Symbols
// are processed sequentially; a failure on one never aborts the rest.
func (e *Engine) signalCycle() {
	cfg := e.cfg()
	for _, symbol := range cfg.Trading.Symbols {
		if e.holding(symbol) {
			continue
		}
		if e.risk.OpenCount() >= cfg.Risk.MaxPositions {
			e.log.Debug().Str("symbol", symbol).Msg("position limit reached, skipping cycle")
			return
		}
		e.trySymbol(cfg, symbol)
	}
}

func (e *Engine) trySymbol(cfg *config.Config, symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout())
	defer cancel()

	outcome, err := e.source.Aggregate(ctx, symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("decision cycle failed")
		e.publish(stream.EventError, symbol, err.Error())
		return
	}
	if !outcome.Tradeable || outcome.Signal == nil {
		return
	}
	sig := outcome.Signal
	if sig.Confidence < cfg.Trading.MinConfidence {
		e.log.Debug().Str("symbol", symbol).
			Float64("confidence", sig.Confidence).
			Float64("min", cfg.Trading.MinConfidence).
			Msg("signal below confidence floor")
		return
	}

	logging.LogSignal(e.log, symbol, string(sig.Type), sig.Source, sig.Confidence, sig.Reasoning)
	e.execute(ctx, cfg, sig)
}

// execute sizes and places the order for a signal, then registers the
// resulting position with the risk manager and the monitor loop.
func (e *Engine) execute(ctx context.Context, cfg *config.Config, sig *models.Signal) {
	balance, err := e.trader.GetAvailableBalance(ctx, quoteAsset)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("balance query failed")
		e.publish(stream.EventError, sig.Symbol, err.Error())
		return
	}

	stopFraction := stopDistanceFraction(sig.EntryPrice, sig.StopLoss)
	notional := e.risk.PositionSize(balance, stopFraction)
	if notional > balance {
		notional = balance
	}
	if notional <= 0 || sig.EntryPrice <= 0 {
		e.log.Debug().Str("symbol", sig.Symbol).Msg("zero position size, skipping")
		return
	}
	amount := notional / sig.EntryPrice

	rec, err := e.trader.PlaceOrder(ctx, models.Order{
		Symbol: sig.Symbol,
		Side:   sig.Type,
		Type:   models.OrderTypeMarket,
		Amount: amount,
	})
	if err != nil {
		e.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("order placement failed")
		e.publish(stream.EventError, sig.Symbol, err.Error())
		if e.audit != nil {
			e.audit.LogOrderPlaced(ctx, "", sig.Symbol, string(sig.Type), amount, sig.EntryPrice, false, err.Error())
		}
		return
	}

	pos := &models.Position{
		ID:         rec.OrderID,
		Symbol:     sig.Symbol,
		Side:       sig.Type,
		EntryPrice: rec.Price,
		Amount:     rec.Amount,
		StopLoss:   sig.StopLoss,
		SignalID:   sig.ID,
		OpenedAt:   rec.PlacedAt,
	}
	if sig.Plan != nil {
		pos.Targets = sig.Plan.Targets
		pos.Trailing = sig.Plan.Trailing
		pos.Leverage = e.risk.ClampLeverage(sig.Plan.Leverage)
	}

	e.risk.RecordOpen(pos)
	e.track(pos)

	logging.LogTradeOpened(e.log, pos.Symbol, string(pos.Side), pos.Amount, pos.EntryPrice, pos.StopLoss)
	e.publish(stream.EventTradeOpened, pos.Symbol, pos)
	if e.audit != nil {
		e.audit.LogOrderPlaced(ctx, rec.OrderID, pos.Symbol, string(pos.Side), pos.Amount, pos.EntryPrice, true, "")
		e.audit.LogSignal(ctx, sig.Symbol, string(sig.Type), sig.Source, sig.Confidence, true)
	}
}

// monitorCycle checks every open position for exit triggers at the current
// rate. Price fetch failures skip the position for this cycle only.
func (e *Engine) monitorCycle() {
	cfg := e.cfg()
	for _, t := range e.snapshot() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout())
		price, err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() (float64, error) {
			return e.data.GetRate(ctx, t.pos.Symbol)
		})
		if err != nil {
			cancel()
			e.log.Warn().Err(err).Str("symbol", t.pos.Symbol).Msg("rate fetch failed")
			continue
		}

		e.mu.Lock()
		action, reason := t.evaluate(price)
		t.pos.PnL = t.pos.UnrealizedPnL(price)
		e.mu.Unlock()

		if action != exitNone {
			e.closePosition(ctx, t, reason)
		}
		cancel()
	}
}

// closePosition confirms the close with the provider before any risk state
// changes; a failed close leaves the position tracked for the next cycle.
func (e *Engine) closePosition(ctx context.Context, t *tracked, reason string) {
	result, err := e.trader.ClosePosition(ctx, t.pos.Symbol)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", t.pos.Symbol).Msg("close failed")
		e.publish(stream.EventError, t.pos.Symbol, err.Error())
		if errors.Is(err, errors.ErrPositionNotFound) {
			e.untrack(t.pos.Symbol)
		}
		return
	}
	result.Reason = reason

	e.untrack(t.pos.Symbol)
	e.risk.RecordResult(result)

	logging.LogTradeClosed(e.log, result.Symbol, string(result.Status), reason, result.PnL)
	e.publish(stream.EventTradeClosed, result.Symbol, result)
	if e.audit != nil {
		e.audit.LogPositionClosed(ctx, result.Symbol, reason, result.PnL)
	}
}

// housekeeping logs a periodic health line.
func (e *Engine) housekeeping() {
	e.mu.Lock()
	open := len(e.positions)
	e.mu.Unlock()

	metrics := stream.HubMetrics{}
	if e.hub != nil {
		metrics = e.hub.Metrics()
	}
	e.log.Debug().
		Int("open_positions", open).
		Float64("drawdown", e.risk.Drawdown()).
		Uint64("events_dropped", metrics.Dropped).
		Msg("housekeeping")
}

// OpenPositions returns copies of the tracked positions.
func (e *Engine) OpenPositions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Position, 0, len(e.positions))
	for _, t := range e.positions {
		out = append(out, *t.pos)
	}
	return out
}

func (e *Engine) holding(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.positions[symbol]
	return ok
}

func (e *Engine) track(pos *models.Position) {
	e.mu.Lock()
	e.positions[pos.Symbol] = newTracked(pos)
	e.mu.Unlock()
}

func (e *Engine) untrack(symbol string) {
	e.mu.Lock()
	delete(e.positions, symbol)
	e.mu.Unlock()
}

func (e *Engine) snapshot() []*tracked {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*tracked, 0, len(e.positions))
	for _, t := range e.positions {
		out = append(out, t)
	}
	return out
}

func (e *Engine) publish(t stream.EventType, symbol string, payload interface{}) {
	if e.hub != nil {
		e.hub.Emit(t, symbol, payload)
	}
}

func stopDistanceFraction(entry, stop float64) float64 {
	if entry <= 0 || stop <= 0 {
		return 0
	}
	return math.Abs(entry-stop) / entry
}
