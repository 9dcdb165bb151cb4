package features

import (
	"math"

	"crypto-trader/internal/analysis/indicators"
	"crypto-trader/internal/errors"
	"crypto-trader/internal/models"
)

// Extractor computes a feature Bundle from a bar window. All indicators are
// evaluated against the same window so a bundle is internally consistent.
type Extractor struct {
	sma20 *indicators.SMA
	sma50 *indicators.SMA
	ema12 *indicators.EMA
	ema26 *indicators.EMA
	macd  *indicators.MACD
	rsi   *indicators.RSI
	stoch *indicators.Stochastic
	roc   *indicators.ROC
	boll  *indicators.BollingerBands
	atr   *indicators.ATR
	adx   *indicators.ADX
}

// NewExtractor returns an Extractor with the standard periods.
func NewExtractor() *Extractor {
	return &Extractor{
		sma20: indicators.NewSMA(20),
		sma50: indicators.NewSMA(50),
		ema12: indicators.NewEMA(12),
		ema26: indicators.NewEMA(26),
		macd:  indicators.NewMACD(12, 26, 9),
		rsi:   indicators.NewRSI(14),
		stoch: indicators.NewStochastic(14, 3),
		roc:   indicators.NewROC(10),
		boll:  indicators.NewBollingerBands(20, 2.0),
		atr:   indicators.NewATR(14),
		adx:   indicators.NewADX(14),
	}
}

// Extract builds the Bundle for one timeframe window. It fails hard when the
// window holds fewer than models.MinAnalysisBars bars; partial feature sets
// are never produced.
func (e *Extractor) Extract(symbol string, tf models.Timeframe, candles []models.Candle, mctx models.MarketContext) (*Bundle, error) {
	if len(candles) < models.MinAnalysisBars {
		return nil, errors.NewInsufficientData(symbol, string(tf), len(candles), models.MinAnalysisBars)
	}

	b := &Bundle{
		Symbol:    symbol,
		Timeframe: tf,
		LastBar:   candles[len(candles)-1],
		LastClose: candles[len(candles)-1].Close,
		PrevClose: candles[len(candles)-2].Close,
		Context:   mctx,
	}

	sma20, err := e.sma20.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.SMA20 = last(sma20)

	sma50, err := e.sma50.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.SMA50 = last(sma50)

	ema12, err := e.ema12.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.EMA12 = last(ema12)

	ema26, err := e.ema26.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.EMA26 = last(ema26)

	macd, err := e.macd.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.MACD = last(macd["macd"])
	b.MACDSignal = last(macd["signal"])
	b.MACDHist = last(macd["histogram"])

	rsi, err := e.rsi.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.RSI = last(rsi)

	stoch, err := e.stoch.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.StochK = last(stoch["percent_k"])
	b.StochD = last(stoch["percent_d"])

	roc, err := e.roc.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.ROC = last(roc)

	boll, err := e.boll.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.BollUpper = last(boll["upper"])
	b.BollMiddle = last(boll["middle"])
	b.BollLower = last(boll["lower"])

	atr, err := e.atr.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.ATR = last(atr)

	adx, err := e.adx.Calculate(candles)
	if err != nil {
		return nil, err
	}
	b.ADX = last(adx["adx"])
	b.PlusDI = last(adx["plus_di"])
	b.MinusDI = last(adx["minus_di"])

	b.HigherHighs, b.HigherLows, b.LowerHighs, b.LowerLows = structureFlags(candles)
	b.Trend = classifyTrend(b)
	b.VolumeRatio = volumeRatio(candles, 20)
	b.Support, b.Resistance = nearestLevels(candles, b.LastClose)

	const recentBars = 10
	b.Recent = append([]models.Candle(nil), candles[len(candles)-recentBars:]...)

	return b, nil
}

// last returns the newest value of an indicator series, 0 when empty.
func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// classifyTrend applies five bullish checks to the moving-average stack and
// recent market structure. Four or more passing reads bullish, one or fewer
// reads bearish, anything between is neutral.
func classifyTrend(b *Bundle) models.Direction {
	checks := []bool{
		b.LastClose > b.SMA20,
		b.LastClose > b.SMA50,
		b.SMA20 > b.SMA50,
		b.HigherHighs,
		b.HigherLows,
	}
	bullish := 0
	for _, ok := range checks {
		if ok {
			bullish++
		}
	}
	switch {
	case bullish >= 4:
		return models.Bullish
	case bullish <= 1:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// structureFlags compares the extremes of the two most recent 5-bar halves of
// a 10-bar window.
func structureFlags(candles []models.Candle) (hh, hl, lh, ll bool) {
	n := len(candles)
	if n < 10 {
		return false, false, false, false
	}
	prev := candles[n-10 : n-5]
	recent := candles[n-5:]

	prevHigh, prevLow := extremes(prev)
	recentHigh, recentLow := extremes(recent)

	hh = recentHigh > prevHigh
	hl = recentLow > prevLow
	lh = recentHigh < prevHigh
	ll = recentLow < prevLow
	return hh, hl, lh, ll
}

func extremes(candles []models.Candle) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// volumeRatio divides the latest bar volume by the mean volume of the prior
// period bars. Returns 1 when the mean is zero so dead feeds score neutral.
func volumeRatio(candles []models.Candle, period int) float64 {
	n := len(candles)
	if n < period+1 {
		return 1
	}
	var sum float64
	for _, c := range candles[n-1-period : n-1] {
		sum += c.Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1
	}
	return candles[n-1].Volume / avg
}

// nearestLevels scans pivot highs and lows (strength 3) for the closest
// resistance above and support below the reference price. When no pivot
// qualifies it falls back to the window extremes.
func nearestLevels(candles []models.Candle, price float64) (support, resistance float64) {
	const strength = 3
	support = math.Inf(-1)
	resistance = math.Inf(1)

	for i := strength; i < len(candles)-strength; i++ {
		if isPivotLow(candles, i, strength) {
			if lv := candles[i].Low; lv < price && lv > support {
				support = lv
			}
		}
		if isPivotHigh(candles, i, strength) {
			if lv := candles[i].High; lv > price && lv < resistance {
				resistance = lv
			}
		}
	}

	winHigh, winLow := extremes(candles)
	if math.IsInf(support, -1) {
		support = winLow
	}
	if math.IsInf(resistance, 1) {
		resistance = winHigh
	}
	return support, resistance
}

func isPivotHigh(candles []models.Candle, i, strength int) bool {
	for j := i - strength; j <= i+strength; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= candles[i].High {
			return false
		}
	}
	return true
}

func isPivotLow(candles []models.Candle, i, strength int) bool {
	for j := i - strength; j <= i+strength; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= candles[i].Low {
			return false
		}
	}
	return true
}
