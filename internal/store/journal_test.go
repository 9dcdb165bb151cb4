package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-trader/internal/models"
	"crypto-trader/internal/stream"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleResult(id, symbol string, pnl float64, closedAt time.Time) *models.TradeResult {
	return &models.TradeResult{
		ID:         id,
		SignalID:   "sig-" + id,
		Symbol:     symbol,
		Side:       models.SignalBuy,
		EntryPrice: 100,
		ExitPrice:  100 + pnl,
		Amount:     1,
		PnL:        pnl,
		Duration:   90 * time.Second,
		Status:     models.StatusFor(pnl),
		Reason:     "target",
		ClosedAt:   closedAt,
	}
}

func TestJournalTradeRoundTrip(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	want := sampleResult("t1", "BTCUSDT", 250, now)
	if err := j.SaveTrade(ctx, want); err != nil {
		t.Fatalf("SaveTrade: %v", err)
	}

	trades, err := j.Trades(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	got := trades[0]
	if got.ID != want.ID || got.Symbol != want.Symbol || got.PnL != want.PnL {
		t.Fatalf("trade = %+v, want %+v", got, want)
	}
	if got.Status != models.TradeWin {
		t.Fatalf("status = %s, want WIN", got.Status)
	}
	if got.Duration != 90*time.Second {
		t.Fatalf("duration = %v, want 90s", got.Duration)
	}
}

func TestJournalDuplicateTradeIgnored(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	r := sampleResult("t1", "BTCUSDT", 100, time.Now().UTC())
	if err := j.SaveTrade(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := j.SaveTrade(ctx, r); err != nil {
		t.Fatal(err)
	}
	trades, err := j.Trades(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 {
		t.Fatalf("duplicate insert produced %d rows, want 1", len(trades))
	}
}

func TestJournalFilterAndOrder(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	j.SaveTrade(ctx, sampleResult("t1", "BTCUSDT", 10, base.Add(-2*time.Hour)))
	j.SaveTrade(ctx, sampleResult("t2", "ETHUSDT", -20, base.Add(-time.Hour)))
	j.SaveTrade(ctx, sampleResult("t3", "BTCUSDT", 30, base))

	btc, err := j.Trades(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(btc) != 2 {
		t.Fatalf("got %d BTC trades, want 2", len(btc))
	}
	if btc[0].ID != "t3" || btc[1].ID != "t1" {
		t.Fatalf("trades not newest-first: %s, %s", btc[0].ID, btc[1].ID)
	}

	all, err := j.Trades(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("limit not applied: got %d", len(all))
	}
}

func TestJournalStats(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	now := time.Now().UTC()
	j.SaveTrade(ctx, sampleResult("t1", "BTCUSDT", 100, now))
	j.SaveTrade(ctx, sampleResult("t2", "BTCUSDT", -40, now))
	j.SaveTrade(ctx, sampleResult("t3", "ETHUSDT", 60, now))
	j.SaveTrade(ctx, sampleResult("t4", "ETHUSDT", 0, now))

	stats, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Trades != 4 || stats.Wins != 2 || stats.Losses != 1 {
		t.Fatalf("stats = %+v, want 4 trades, 2 wins, 1 loss", stats)
	}
	if stats.TotalPnL != 120 {
		t.Fatalf("total pnl = %v, want 120", stats.TotalPnL)
	}
	if stats.WinRate != 0.5 {
		t.Fatalf("win rate = %v, want 0.5", stats.WinRate)
	}
}

func TestJournalConsumesHubEvents(t *testing.T) {
	j := testJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	defer hub.Close()
	j.Consume(ctx, hub)

	sig := &models.Signal{
		ID:         models.NewSignalID(),
		Symbol:     "BTCUSDT",
		Type:       models.SignalBuy,
		EntryPrice: 100,
		Confidence: 0.8,
		Source:     "aggregated",
		CreatedAt:  time.Now().UTC(),
	}
	hub.Emit(stream.EventSignal, sig.Symbol, sig)
	hub.Emit(stream.EventTradeClosed, "BTCUSDT", sampleResult("t1", "BTCUSDT", 50, time.Now().UTC()))
	// Event the journal does not subscribe to.
	hub.Emit(stream.EventStarted, "", nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		stats, err := j.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Trades == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("trade event was not journaled in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	trades, err := j.Trades(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].PnL != 50 {
		t.Fatalf("unexpected journaled trades: %+v", trades)
	}
}
