package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"crypto-trader/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.TimeRange(time.Now().Add(-365*24*time.Hour), time.Hour),
		"Open":      gen.Float64Range(100.0, 1000.0),
		"High":      gen.Float64Range(100.0, 1000.0),
		"Low":       gen.Float64Range(100.0, 1000.0),
		"Close":     gen.Float64Range(100.0, 1000.0),
		"Volume":    gen.Float64Range(1000.0, 10000000.0),
	}).Map(func(c models.Candle) models.Candle {
		if c.Open <= 0 {
			c.Open = 100.0
		}
		if c.Close <= 0 {
			c.Close = 100.0
		}
		// Enforce OHLC constraints: High >= max(Open, Close), Low <= min(Open, Close)
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.Low > c.High {
			c.Low, c.High = c.High, c.Low
		}
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

// candleSliceGen generates a slice of valid candles with increasing timestamps
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, candles[len(candles)-1])
		}
		for i := range candles {
			candles[i].Timestamp = time.Now().Add(time.Duration(i) * time.Hour)
			if candles[i].Open <= 0 {
				candles[i].Open = 100.0
			}
			if candles[i].Close <= 0 {
				candles[i].Close = 100.0
			}
			candles[i].High = math.Max(candles[i].High, math.Max(candles[i].Open, candles[i].Close))
			candles[i].Low = math.Min(candles[i].Low, math.Min(candles[i].Open, candles[i].Close))
			if candles[i].Low > candles[i].High {
				candles[i].Low, candles[i].High = candles[i].High, candles[i].Low
			}
			if candles[i].High <= candles[i].Low {
				candles[i].High = candles[i].Low + 1.0
			}
		}
		return candles
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			values, err := rsi.Calculate(candles)
			if err != nil {
				// Insufficient data is acceptable
				return true
			}
			for _, v := range values {
				if v < 0 || v > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_StochasticWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Stochastic %K and %D values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			stoch := NewStochastic(14, 3)
			values, err := stoch.Calculate(candles)
			if err != nil {
				return true
			}
			for i := range values["percent_k"] {
				k := values["percent_k"][i]
				d := values["percent_d"][i]
				if k < 0 || k > 100 || d < 0 || d > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(25, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_ADXWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("ADX, +DI, -DI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			adx := NewADX(14)
			values, err := adx.Calculate(candles)
			if err != nil {
				return true
			}
			for _, key := range []string{"adx", "plus_di", "minus_di"} {
				for _, v := range values[key] {
					if v < 0 || v > 100 {
						return false
					}
				}
			}
			return true
		},
		candleSliceGen(35, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_BollingerBandsOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Bollinger Bands: Lower <= Middle <= Upper", prop.ForAll(
		func(candles []models.Candle) bool {
			bb := NewBollingerBands(20, 2.0)
			values, err := bb.Calculate(candles)
			if err != nil {
				return true
			}
			for i := range values["middle"] {
				if values["lower"][i] > values["middle"][i] || values["middle"][i] > values["upper"][i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(25, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_SMAIsAverageOfPrices(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("SMA is the arithmetic mean of closing prices over the period", prop.ForAll(
		func(candles []models.Candle) bool {
			period := 10
			sma := NewSMA(period)
			values, err := sma.Calculate(candles)
			if err != nil {
				return true
			}
			closes := closePrices(candles)
			latest := values[len(values)-1]
			expected := mean(closes[len(closes)-period:])
			return math.Abs(latest-expected) < 0.0001
		},
		candleSliceGen(15, 50),
	))

	properties.TestingRun(t)
}

func TestProperty_ATRIsNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("ATR values are non-negative", prop.ForAll(
		func(candles []models.Candle) bool {
			atr := NewATR(14)
			values, err := atr.Calculate(candles)
			if err != nil {
				return true
			}
			for _, v := range values {
				if v < 0 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_MACDHistogramIsDifference(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("MACD histogram equals macd minus signal", prop.ForAll(
		func(candles []models.Candle) bool {
			macd := NewMACD(12, 26, 9)
			values, err := macd.Calculate(candles)
			if err != nil {
				return true
			}
			// Histogram is defined once the signal line has warmed up.
			for i := macd.Period() - 1; i < len(values["histogram"]); i++ {
				diff := values["histogram"][i] - (values["macd"][i] - values["signal"][i])
				if math.Abs(diff) >= 0.0001 {
					return false
				}
			}
			return true
		},
		candleSliceGen(40, 100),
	))

	properties.TestingRun(t)
}

func TestIndicatorsInsufficientData(t *testing.T) {
	short := []models.Candle{{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}}

	if _, err := NewSMA(20).Calculate(short); err == nil {
		t.Error("SMA should fail with one candle")
	}
	if _, err := NewRSI(14).Calculate(short); err == nil {
		t.Error("RSI should fail with one candle")
	}
	if _, err := NewATR(14).Calculate(short); err == nil {
		t.Error("ATR should fail with one candle")
	}
	if _, err := NewMACD(12, 26, 9).Calculate(short); err == nil {
		t.Error("MACD should fail with one candle")
	}
}
