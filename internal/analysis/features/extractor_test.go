package features

import (
	"math"
	"testing"
	"time"

	stderrors "errors"

	"crypto-trader/internal/errors"
	"crypto-trader/internal/models"
)

// trendCandles builds a deterministic series with a constant per-bar drift.
func trendCandles(n int, start, drift float64) []models.Candle {
	candles := make([]models.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		close := price + drift
		high := math.Max(open, close) + 0.5
		low := math.Min(open, close) - 0.5
		candles[i] = models.Candle{
			Timestamp: time.Now().Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000,
		}
		price = close
	}
	return candles
}

func TestExtractRequiresMinimumBars(t *testing.T) {
	e := NewExtractor()
	candles := trendCandles(models.MinAnalysisBars-1, 100, 1)

	_, err := e.Extract("BTCUSDT", models.TimeframeMedium, candles, models.MarketContext{})
	if err == nil {
		t.Fatal("expected error for short window")
	}
	if !stderrors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	var ide *errors.InsufficientDataError
	if !stderrors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %T", err)
	}
	if ide.Got != models.MinAnalysisBars-1 || ide.Need != models.MinAnalysisBars {
		t.Errorf("got/need mismatch: %d/%d", ide.Got, ide.Need)
	}
}

func TestExtractUptrendClassifiesBullish(t *testing.T) {
	e := NewExtractor()
	candles := trendCandles(80, 100, 1.5)

	b, err := e.Extract("BTCUSDT", models.TimeframeMedium, candles, models.MarketContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if b.Trend != models.Bullish {
		t.Errorf("expected bullish trend, got %s", b.Trend)
	}
	if !b.HigherHighs || !b.HigherLows {
		t.Error("steady uptrend should form higher highs and higher lows")
	}
	if b.LowerHighs || b.LowerLows {
		t.Error("steady uptrend should not form lower highs or lows")
	}
	if b.LastClose <= b.SMA20 || b.SMA20 <= b.SMA50 {
		t.Errorf("moving average stack out of order: close=%.2f sma20=%.2f sma50=%.2f",
			b.LastClose, b.SMA20, b.SMA50)
	}
	if b.RSI < 50 {
		t.Errorf("uptrend RSI should be above 50, got %.2f", b.RSI)
	}
}

func TestExtractDowntrendClassifiesBearish(t *testing.T) {
	e := NewExtractor()
	candles := trendCandles(80, 500, -1.5)

	b, err := e.Extract("ETHUSDT", models.TimeframeShort, candles, models.MarketContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if b.Trend != models.Bearish {
		t.Errorf("expected bearish trend, got %s", b.Trend)
	}
	if !b.LowerHighs || !b.LowerLows {
		t.Error("steady downtrend should form lower highs and lower lows")
	}
	if b.RSI > 50 {
		t.Errorf("downtrend RSI should be below 50, got %.2f", b.RSI)
	}
}

func TestExtractFlatSeriesIsNeutralish(t *testing.T) {
	e := NewExtractor()
	// Alternate up/down so the window has no net direction.
	candles := make([]models.Candle, 0, 80)
	price := 200.0
	for i := 0; i < 80; i++ {
		drift := 1.0
		if i%2 == 1 {
			drift = -1.0
		}
		open := price
		close := price + drift
		candles = append(candles, models.Candle{
			Timestamp: time.Now().Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, close) + 0.5,
			Low:       math.Min(open, close) - 0.5,
			Close:     close,
			Volume:    1000,
		})
		price = close
	}

	b, err := e.Extract("BTCUSDT", models.TimeframeLong, candles, models.MarketContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if b.Trend == models.Bullish {
		t.Errorf("flat series should not read bullish")
	}
	if b.VolumeRatio < 0.99 || b.VolumeRatio > 1.01 {
		t.Errorf("constant volume should give ratio ~1, got %.4f", b.VolumeRatio)
	}
}

func TestVolumeRatioSpike(t *testing.T) {
	candles := trendCandles(60, 100, 0.5)
	candles[len(candles)-1].Volume = 3000 // 3x the 1000 baseline

	e := NewExtractor()
	b, err := e.Extract("BTCUSDT", models.TimeframeMedium, candles, models.MarketContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if math.Abs(b.VolumeRatio-3.0) > 0.01 {
		t.Errorf("expected volume ratio ~3.0, got %.4f", b.VolumeRatio)
	}
}

func TestSupportResistanceBracketPrice(t *testing.T) {
	// V-shape: decline then recovery leaves pivots on both sides of price.
	candles := trendCandles(40, 300, -2)
	candles = append(candles, trendCandles(40, candles[len(candles)-1].Close, 2)[0:35]...)
	for i := range candles {
		candles[i].Timestamp = time.Now().Add(time.Duration(i) * time.Hour)
	}

	e := NewExtractor()
	b, err := e.Extract("BTCUSDT", models.TimeframeMedium, candles, models.MarketContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if b.Support >= b.LastClose {
		t.Errorf("support %.2f should be below price %.2f", b.Support, b.LastClose)
	}
	if b.Resistance <= b.LastClose {
		t.Errorf("resistance %.2f should be above price %.2f", b.Resistance, b.LastClose)
	}
}

func TestExtractTakesLatestIndicatorValues(t *testing.T) {
	e := NewExtractor()
	candles := trendCandles(80, 100, 1.5)

	b, err := e.Extract("BTCUSDT", models.TimeframeMedium, candles, models.MarketContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	// SMA20 must equal the mean of the newest 20 closes, not a warmup value.
	var sum float64
	for _, c := range candles[len(candles)-20:] {
		sum += c.Close
	}
	if want := sum / 20; math.Abs(b.SMA20-want) > 0.0001 {
		t.Errorf("SMA20 = %.4f, want latest-window mean %.4f", b.SMA20, want)
	}

	if b.RSI < 0 || b.RSI > 100 {
		t.Errorf("RSI out of bounds: %.4f", b.RSI)
	}
	if b.StochK < 0 || b.StochK > 100 || b.StochD < 0 || b.StochD > 100 {
		t.Errorf("stochastic out of bounds: k=%.4f d=%.4f", b.StochK, b.StochD)
	}
	if math.Abs(b.MACDHist-(b.MACD-b.MACDSignal)) > 0.0001 {
		t.Errorf("MACD histogram %.4f != macd-signal %.4f", b.MACDHist, b.MACD-b.MACDSignal)
	}
	if b.BollLower > b.BollMiddle || b.BollMiddle > b.BollUpper {
		t.Errorf("bollinger bands out of order: %.4f %.4f %.4f", b.BollLower, b.BollMiddle, b.BollUpper)
	}
	if b.ATR <= 0 {
		t.Errorf("ATR should be positive for a moving series, got %.4f", b.ATR)
	}
	if b.ADX == 0 {
		t.Error("ADX should be warmed up over an 80-bar window")
	}
}

func TestExtractCarriesContext(t *testing.T) {
	mctx := models.MarketContext{Sentiment: 0.4, News: -0.2, WhaleActivity: 0.1}
	e := NewExtractor()
	b, err := e.Extract("BTCUSDT", models.TimeframeMedium, trendCandles(60, 100, 1), mctx)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if b.Context != mctx {
		t.Errorf("context not carried: %+v", b.Context)
	}
}
