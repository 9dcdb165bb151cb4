package indicators

import (
	"errors"
	"math"

	"crypto-trader/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

// trueRange computes the true range of a bar against the previous close.
func trueRange(current, previous models.Candle) float64 {
	tr := current.High - current.Low
	if hc := math.Abs(current.High - previous.Close); hc > tr {
		tr = hc
	}
	if lc := math.Abs(current.Low - previous.Close); lc > tr {
		tr = lc
	}
	return tr
}

func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

// wilderSmooth applies Wilder's smoothing over the given period.
func wilderSmooth(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < period {
		return out
	}
	out[period-1] = mean(values[:period])
	for i := period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}

func highest(values []float64) float64 {
	h := math.Inf(-1)
	for _, v := range values {
		if v > h {
			h = v
		}
	}
	return h
}

func lowest(values []float64) float64 {
	l := math.Inf(1)
	for _, v := range values {
		if v < l {
			l = v
		}
	}
	return l
}

// lastNonZero returns the most recent non-zero value in a series, or 0.
func lastNonZero(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != 0 {
			return values[i]
		}
	}
	return 0
}
