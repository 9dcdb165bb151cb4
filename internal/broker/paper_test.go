package broker

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"crypto-trader/internal/errors"
	"crypto-trader/internal/models"
)

func TestPaperRoundTripWin(t *testing.T) {
	ctx := context.Background()
	p := NewPaperTrader(nil, 100000)
	p.UpdatePrice("BTCUSDT", 50000)

	_, err := p.PlaceOrder(ctx, models.Order{
		Symbol: "BTCUSDT",
		Side:   models.SignalBuy,
		Type:   models.OrderTypeMarket,
		Amount: 1,
	})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	p.UpdatePrice("BTCUSDT", 52000)
	result, err := p.ClosePosition(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if result.Status != models.TradeWin {
		t.Errorf("expected WIN, got %s", result.Status)
	}
	want := (52000.0 - 50000.0) * 1
	if math.Abs(result.PnL-want) > 1e-9 {
		t.Errorf("pnl %.2f, want %.2f", result.PnL, want)
	}

	balance, _ := p.GetAvailableBalance(ctx, "USDT")
	if math.Abs(balance-102000) > 1e-9 {
		t.Errorf("balance %.2f, want 102000", balance)
	}

	positions, _ := p.GetPositions(ctx)
	if len(positions) != 0 {
		t.Errorf("position not removed on close")
	}
}

func TestPaperShortSideSignFlip(t *testing.T) {
	ctx := context.Background()
	p := NewPaperTrader(nil, 100000)
	p.UpdatePrice("ETHUSDT", 3000)

	if _, err := p.PlaceOrder(ctx, models.Order{
		Symbol: "ETHUSDT",
		Side:   models.SignalSell,
		Type:   models.OrderTypeMarket,
		Amount: 2,
	}); err != nil {
		t.Fatalf("place failed: %v", err)
	}

	p.UpdatePrice("ETHUSDT", 2900)
	result, err := p.ClosePosition(ctx, "ETHUSDT")
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if result.Status != models.TradeWin {
		t.Errorf("short on falling price should WIN, got %s", result.Status)
	}
	if math.Abs(result.PnL-200) > 1e-9 {
		t.Errorf("pnl %.2f, want 200", result.PnL)
	}
}

func TestPaperInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	p := NewPaperTrader(nil, 100)
	p.UpdatePrice("BTCUSDT", 50000)

	_, err := p.PlaceOrder(ctx, models.Order{
		Symbol: "BTCUSDT",
		Side:   models.SignalBuy,
		Type:   models.OrderTypeMarket,
		Amount: 1,
	})
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if !stderrors.Is(err, errors.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestPaperCloseWithoutPosition(t *testing.T) {
	ctx := context.Background()
	p := NewPaperTrader(nil, 1000)
	p.UpdatePrice("BTCUSDT", 50000)

	_, err := p.ClosePosition(ctx, "BTCUSDT")
	if !stderrors.Is(err, errors.ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestSimFeedIsDeterministicAndValid(t *testing.T) {
	ctx := context.Background()
	feed := NewSimFeed(50000)

	a, err := feed.GetHistory(ctx, "BTCUSDT", models.TimeframeMedium, 100)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	b, _ := feed.GetHistory(ctx, "BTCUSDT", models.TimeframeMedium, 100)

	if len(a) != 100 {
		t.Fatalf("expected 100 bars, got %d", len(a))
	}
	for i, c := range a {
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			t.Fatalf("bar %d violates OHLC bounds: %+v", i, c)
		}
		if c.Close != b[i].Close {
			t.Fatal("same symbol and timeframe should reproduce the same series")
		}
	}

	other, _ := feed.GetHistory(ctx, "ETHUSDT", models.TimeframeMedium, 100)
	if other[50].Close == a[50].Close {
		t.Error("different symbols should see different series")
	}
}

type fixedRateFeed struct {
	rate float64
}

func (f *fixedRateFeed) GetHistory(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	return nil, nil
}

func (f *fixedRateFeed) GetRate(ctx context.Context, pair string) (float64, error) {
	return f.rate, nil
}

func TestPaperQuoteCacheExpires(t *testing.T) {
	ctx := context.Background()
	feed := &fixedRateFeed{rate: 100}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := NewPaperTrader(feed, 100000)
	p.now = func() time.Time { return clock }

	if _, err := p.PlaceOrder(ctx, models.Order{
		Symbol: "BTCUSDT",
		Side:   models.SignalBuy,
		Type:   models.OrderTypeMarket,
		Amount: 1,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Within the TTL the cached quote is reused.
	feed.rate = 110
	res, err := p.rate(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	if res != 100 {
		t.Errorf("fresh cache should serve 100, got %.2f", res)
	}

	// Past the TTL the close must settle at the feed's current price.
	clock = clock.Add(rateTTL + time.Second)
	result, err := p.ClosePosition(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if result.ExitPrice != 110 {
		t.Errorf("stale cache should refetch, exit = %.2f want 110", result.ExitPrice)
	}
	if math.Abs(result.PnL-10) > 1e-9 {
		t.Errorf("PnL = %.2f, want 10", result.PnL)
	}
}
