package models

import (
	"time"

	"github.com/google/uuid"
)

// Signal is a tradeable recommendation produced by one of the signal engines
// or the aggregator. A signal is consumed at most once by the execution engine.
type Signal struct {
	ID          string
	Symbol      string
	Type        SignalType
	EntryPrice  float64
	TargetPrice float64
	StopLoss    float64
	Confidence  float64 // [0, 1]
	Reasoning   string
	Source      string // "strategy", "advanced", "aggregated"
	Plan        *EntryPlan
	CreatedAt   time.Time
}

// NewSignalID returns a fresh signal identifier.
func NewSignalID() string {
	return uuid.NewString()
}

// LadderTarget is one rung of a laddered take-profit plan.
type LadderTarget struct {
	Price    float64
	Fraction float64 // share of the position closed at this rung
}

// TrailingConfig describes trailing-stop behaviour for an open position.
type TrailingConfig struct {
	Enabled bool
	Percent float64 // trail distance as a percentage of price
}

// EntryPlan is the stop/target/leverage specification attached to a signal.
// It becomes immutable once attached to an opened position.
type EntryPlan struct {
	StopLoss float64
	Targets  []LadderTarget
	Trailing TrailingConfig
	Leverage float64
}

// ConfluenceScore is the agreement-weighted composite computed per decision
// cycle. It is derived data and never persisted.
type ConfluenceScore struct {
	Agreement    float64 // share of timeframes agreeing with the majority direction
	AIScore      float64
	TechScore    float64
	ContextScore float64
	Combined     float64
	Passed       bool
}
