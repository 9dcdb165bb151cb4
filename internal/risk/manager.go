// Package risk enforces the temporal and statistical constraints on trading:
// cooldowns, loss streaks, daily loss limits, sizing, leverage and drawdown.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-trader/internal/models"
)

// Config holds the risk thresholds. Validated at engine construction.
type Config struct {
	MaxPositions    int
	MaxDailyLoss    float64
	RiskPerTrade    float64 // fraction of balance risked per trade
	MaxPositionSize float64 // cap on position notional
	MinLeverage     float64
	MaxLeverage     float64
	CooldownBars    int
	BarDuration     time.Duration
}

// DefaultConfig returns the standard risk parameters.
func DefaultConfig() Config {
	return Config{
		MaxPositions:    3,
		MaxDailyLoss:    500,
		RiskPerTrade:    0.02,
		MaxPositionSize: 10000,
		MinLeverage:     2,
		MaxLeverage:     10,
		CooldownBars:    20,
		BarDuration:     models.TimeframeMedium.Duration(),
	}
}

const (
	lossStreakCooldown = 2
	lossStreakDeny     = 3
)

// Manager is the single authority over shared risk state. All mutation is
// serialized behind one mutex; it is touched by both the signal cycle and the
// monitor loop.
type Manager struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time

	mu          sync.Mutex
	cooldowns   map[string]time.Time
	lossStreaks map[string]int
	open        map[string]*models.Position
	history     []models.TradeResult

	dailyPnL  float64
	dailyDate string

	cumPnL      float64
	peakPnL     float64
	maxDrawdown float64
}

// NewManager creates a risk manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		log:         log.With().Str("component", "risk").Logger(),
		now:         time.Now,
		cooldowns:   make(map[string]time.Time),
		lossStreaks: make(map[string]int),
		open:        make(map[string]*models.Position),
	}
}

// CanTrade reports whether a new trade on the symbol is currently allowed.
// Each denial carries the rule that fired and a human-readable reason.
func (m *Manager) CanTrade(symbol string) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDay()

	if until, ok := m.cooldowns[symbol]; ok && m.now().Before(until) {
		return false, fmt.Sprintf("cooldown active until %s", until.Format(time.RFC3339))
	}
	if len(m.open) >= m.cfg.MaxPositions {
		return false, fmt.Sprintf("max open positions reached (%d)", m.cfg.MaxPositions)
	}
	if m.dailyPnL <= -m.cfg.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit hit (%.2f)", m.dailyPnL)
	}
	if m.lossStreaks[symbol] >= lossStreakDeny {
		return false, fmt.Sprintf("%d consecutive losses on %s", m.lossStreaks[symbol], symbol)
	}
	return true, ""
}

// RecordOpen registers a newly opened position.
func (m *Manager) RecordOpen(pos *models.Position) {
	m.mu.Lock()
	m.open[pos.Symbol] = pos
	m.mu.Unlock()
}

// RecordResult folds a closed trade into risk state: loss streaks, cooldown
// arming, daily P&L and drawdown. A win or breakeven clears the symbol's
// streak and any active cooldown.
func (m *Manager) RecordResult(result *models.TradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.open, result.Symbol)
	m.history = append(m.history, *result)

	m.rollDay()
	m.dailyPnL += result.PnL

	m.cumPnL += result.PnL
	if m.cumPnL > m.peakPnL {
		m.peakPnL = m.cumPnL
	}
	if dd := m.peakPnL - m.cumPnL; dd > m.maxDrawdown {
		m.maxDrawdown = dd
	}

	if result.Status == models.TradeLoss {
		m.lossStreaks[result.Symbol]++
		if m.lossStreaks[result.Symbol] == lossStreakCooldown {
			until := m.now().Add(time.Duration(m.cfg.CooldownBars) * m.cfg.BarDuration)
			m.cooldowns[result.Symbol] = until
			m.log.Warn().
				Str("symbol", result.Symbol).
				Time("until", until).
				Msg("loss streak cooldown armed")
		}
	} else {
		m.lossStreaks[result.Symbol] = 0
		delete(m.cooldowns, result.Symbol)
	}
}

// PositionSize converts balance and stop distance into an order amount,
// capped at the configured maximum notional.
func (m *Manager) PositionSize(balance, stopFraction float64) float64 {
	if stopFraction <= 0 {
		return 0
	}
	size := balance * m.cfg.RiskPerTrade / stopFraction
	return math.Min(size, m.cfg.MaxPositionSize)
}

// ClampLeverage bounds leverage to the configured band.
func (m *Manager) ClampLeverage(leverage float64) float64 {
	return math.Min(math.Max(leverage, m.cfg.MinLeverage), m.cfg.MaxLeverage)
}

// HasPosition reports whether the symbol currently holds an open position.
func (m *Manager) HasPosition(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[symbol]
	return ok
}

// OpenCount returns the number of open positions.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Drawdown returns the maximum peak-to-trough deficit seen this session. The
// value never decreases.
func (m *Manager) Drawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxDrawdown
}

// History returns a copy of the recorded trade results.
func (m *Manager) History() []models.TradeResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TradeResult(nil), m.history...)
}

// Reset clears all risk state. Administrative action only; state is never
// reset implicitly.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cooldowns = make(map[string]time.Time)
	m.lossStreaks = make(map[string]int)
	m.open = make(map[string]*models.Position)
	m.history = nil
	m.dailyPnL = 0
	m.dailyDate = ""
	m.cumPnL = 0
	m.peakPnL = 0
	m.maxDrawdown = 0

	m.log.Info().Msg("risk state reset")
}

// rollDay zeroes the daily P&L when the UTC calendar day changes. Caller
// holds the lock.
func (m *Manager) rollDay() {
	today := m.now().UTC().Format("2006-01-02")
	if m.dailyDate != today {
		m.dailyDate = today
		m.dailyPnL = 0
	}
}
