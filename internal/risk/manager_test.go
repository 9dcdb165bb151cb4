package risk

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"crypto-trader/internal/models"
)

func testManager(now *time.Time) *Manager {
	m := NewManager(DefaultConfig(), zerolog.Nop())
	m.now = func() time.Time { return *now }
	return m
}

func loss(symbol string, pnl float64) *models.TradeResult {
	return &models.TradeResult{Symbol: symbol, PnL: pnl, Status: models.StatusFor(pnl)}
}

func TestTwoLossesArmCooldown(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	m.RecordResult(loss("BTCUSDT", -50))
	if ok, _ := m.CanTrade("BTCUSDT"); !ok {
		t.Error("one loss should not block trading")
	}

	m.RecordResult(loss("BTCUSDT", -50))
	ok, reason := m.CanTrade("BTCUSDT")
	if ok {
		t.Fatal("two consecutive losses must arm a cooldown")
	}
	if reason == "" {
		t.Error("denial must carry a reason")
	}

	// Other symbols stay tradeable.
	if ok, _ := m.CanTrade("ETHUSDT"); !ok {
		t.Error("cooldown must be symbol-scoped")
	}

	// 20 bars of the 1h default have to pass.
	now = now.Add(19 * time.Hour)
	if ok, _ := m.CanTrade("BTCUSDT"); ok {
		t.Error("cooldown should still be active at 19 bars")
	}
	now = now.Add(time.Hour + time.Minute)
	if ok, _ := m.CanTrade("BTCUSDT"); !ok {
		t.Error("cooldown should have elapsed after 20 bars")
	}
}

func TestWinClearsStreakAndCooldown(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	m.RecordResult(loss("BTCUSDT", -50))
	m.RecordResult(loss("BTCUSDT", -50))
	if ok, _ := m.CanTrade("BTCUSDT"); ok {
		t.Fatal("cooldown expected after two losses")
	}

	m.RecordResult(loss("BTCUSDT", 80)) // a win
	if ok, reason := m.CanTrade("BTCUSDT"); !ok {
		t.Errorf("win must clear streak and cooldown, still denied: %s", reason)
	}
}

func TestBreakevenClearsStreak(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	m.RecordResult(loss("BTCUSDT", -50))
	m.RecordResult(loss("BTCUSDT", 0)) // breakeven
	m.RecordResult(loss("BTCUSDT", -50))

	// Streak restarted at 1, no cooldown.
	if ok, _ := m.CanTrade("BTCUSDT"); !ok {
		t.Error("breakeven must reset the consecutive-loss counter")
	}
}

func TestThreeLossesDenyBeyondCooldown(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	for i := 0; i < 3; i++ {
		m.RecordResult(loss("BTCUSDT", -10))
	}

	// Push past the cooldown window: the streak rule still denies.
	now = now.Add(40 * time.Hour)
	ok, _ := m.CanTrade("BTCUSDT")
	if ok {
		t.Error("three consecutive losses must deny even after cooldown elapses")
	}
}

func TestMaxPositionsDenies(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	for i, sym := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		m.RecordOpen(&models.Position{ID: string(rune('a' + i)), Symbol: sym})
	}

	if ok, _ := m.CanTrade("ADAUSDT"); ok {
		t.Error("open-position count at the max must deny")
	}

	m.RecordResult(&models.TradeResult{Symbol: "SOLUSDT", PnL: 5, Status: models.TradeWin})
	if ok, _ := m.CanTrade("ADAUSDT"); !ok {
		t.Error("closing a position must free a slot")
	}
}

func TestDailyLossLimit(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	m.RecordResult(loss("BTCUSDT", -500))
	if ok, _ := m.CanTrade("ETHUSDT"); ok {
		t.Error("daily loss at the limit must deny all symbols")
	}

	// A new day resets the daily tally.
	now = now.Add(24 * time.Hour)
	if ok, _ := m.CanTrade("ETHUSDT"); !ok {
		t.Error("daily loss limit must roll over at the day boundary")
	}
}

func TestDailyLossResetsAtUTCMidnight(t *testing.T) {
	// 23:30 local on the 1st in UTC+10 is 13:30 UTC; the local date flips
	// 30 minutes later but the UTC date holds until 00:00 UTC.
	zone := time.FixedZone("UTC+10", 10*3600)
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, zone)
	m := testManager(&now)

	m.RecordResult(loss("BTCUSDT", -500))
	if ok, _ := m.CanTrade("ETHUSDT"); ok {
		t.Error("daily loss at the limit must deny all symbols")
	}

	// Local midnight passes, UTC day unchanged: still denied.
	now = now.Add(time.Hour)
	if ok, _ := m.CanTrade("ETHUSDT"); ok {
		t.Error("local-midnight rollover must not reset the daily tally")
	}

	// Past 00:00 UTC the tally resets.
	now = now.Add(10 * time.Hour)
	if ok, _ := m.CanTrade("ETHUSDT"); !ok {
		t.Error("daily tally must reset at UTC midnight")
	}
}

func TestProperty_PositionSizeMonotoneInStopDistance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	now := time.Now()
	m := testManager(&now)

	properties.Property("size decreases as stop distance grows and respects the cap", prop.ForAll(
		func(balance, stopA, stopB float64) bool {
			if stopA > stopB {
				stopA, stopB = stopB, stopA
			}
			sizeA := m.PositionSize(balance, stopA)
			sizeB := m.PositionSize(balance, stopB)
			if sizeA < sizeB {
				return false
			}
			return sizeA <= m.cfg.MaxPositionSize && sizeB <= m.cfg.MaxPositionSize
		},
		gen.Float64Range(100, 1000000),
		gen.Float64Range(0.001, 0.2),
		gen.Float64Range(0.001, 0.2),
	))

	properties.TestingRun(t)
}

func TestPositionSizeFormula(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	// 10000 * 0.02 / 0.05 = 4000
	if size := m.PositionSize(10000, 0.05); math.Abs(size-4000) > 1e-9 {
		t.Errorf("size %.2f, want 4000", size)
	}
	// Uncapped would be 20000; cap at 10000.
	if size := m.PositionSize(100000, 0.01); size != m.cfg.MaxPositionSize {
		t.Errorf("size %.2f, want cap %.2f", size, m.cfg.MaxPositionSize)
	}
	if size := m.PositionSize(10000, 0); size != 0 {
		t.Errorf("zero stop distance should size 0, got %.2f", size)
	}
}

func TestClampLeverage(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	cases := []struct{ in, want float64 }{
		{1, 2},
		{5, 5},
		{50, 10},
	}
	for _, tc := range cases {
		if got := m.ClampLeverage(tc.in); got != tc.want {
			t.Errorf("ClampLeverage(%.0f) = %.1f, want %.1f", tc.in, got, tc.want)
		}
	}
}

func TestDrawdownIsMonotone(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	pnls := []float64{100, -50, -100, 200, -30, -300, 500}
	var prev float64
	for _, pnl := range pnls {
		m.RecordResult(loss("BTCUSDT", pnl))
		dd := m.Drawdown()
		if dd < prev {
			t.Fatalf("drawdown decreased: %.2f -> %.2f", prev, dd)
		}
		prev = dd
	}

	// Peak 100, trough after -50/-100 is -50: drawdown 150. Later peak 150,
	// trough after -30/-300 is -180: drawdown 330.
	if math.Abs(prev-330) > 1e-9 {
		t.Errorf("final drawdown %.2f, want 330", prev)
	}
}

func TestResetClearsState(t *testing.T) {
	now := time.Now()
	m := testManager(&now)

	m.RecordOpen(&models.Position{Symbol: "BTCUSDT"})
	m.RecordResult(loss("ETHUSDT", -50))
	m.RecordResult(loss("ETHUSDT", -50))

	m.Reset()

	if ok, _ := m.CanTrade("ETHUSDT"); !ok {
		t.Error("reset must clear cooldowns and streaks")
	}
	if m.OpenCount() != 0 {
		t.Error("reset must clear open positions")
	}
	if m.Drawdown() != 0 {
		t.Error("reset must clear drawdown")
	}
	if len(m.History()) != 0 {
		t.Error("reset must clear history")
	}
}
