// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Timeframe identifies the bar interval used for one analysis pass.
type Timeframe string

const (
	TimeframeShort  Timeframe = "15m"
	TimeframeMedium Timeframe = "1h"
	TimeframeLong   Timeframe = "4h"
)

// AnalysisTimeframes returns the three timeframes used for multi-timeframe voting.
func AnalysisTimeframes() []Timeframe {
	return []Timeframe{TimeframeShort, TimeframeMedium, TimeframeLong}
}

// Duration returns the bar duration for a timeframe. Unknown timeframes
// default to one hour.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Direction labels the directional bias of a score or trend.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// SignalType is the side of a tradeable signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Action is the outcome of a strategy decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Side converts an action to a signal type. Only valid for BUY/SELL.
func (a Action) Side() SignalType {
	if a == ActionSell {
		return SignalSell
	}
	return SignalBuy
}

// Candle represents one OHLCV sample for a time interval.
// Candles are immutable once produced and arrive in chronological order.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// MinAnalysisBars is the minimum rolling window accepted by the analysis
// pipeline. Fewer bars is a hard error, never a degraded estimate.
const MinAnalysisBars = 50

// MarketContext carries external sentiment inputs, each in [-1, 1].
// A failed provider fetch falls back to the zero value (all neutral).
type MarketContext struct {
	Sentiment     float64
	News          float64
	WhaleActivity float64
}
