package models

import "time"

// Position is an open trade tracked by the execution engine. It is created on
// successful order placement and mutated only by the monitoring loop (running
// P&L) and the risk manager (stop tightening).
type Position struct {
	ID         string
	Symbol     string
	Side       SignalType
	EntryPrice float64
	Amount     float64
	Leverage   float64
	StopLoss   float64
	Targets    []LadderTarget
	Trailing   TrailingConfig
	PnL        float64
	OpenedAt   time.Time
	SignalID   string
}

// Value returns the notional value of the position at the given price.
func (p *Position) Value(price float64) float64 {
	return price * p.Amount
}

// UnrealizedPnL computes directional P&L at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	diff := price - p.EntryPrice
	if p.Side == SignalSell {
		diff = -diff
	}
	return diff * p.Amount
}

// TradeStatus classifies a closed trade.
type TradeStatus string

const (
	TradeWin       TradeStatus = "WIN"
	TradeLoss      TradeStatus = "LOSS"
	TradeBreakeven TradeStatus = "BREAKEVEN"
)

// TradeResult records a closed trade. Results are append-only and never
// mutated after creation.
type TradeResult struct {
	ID         string
	SignalID   string
	Symbol     string
	Side       SignalType
	EntryPrice float64
	ExitPrice  float64
	Amount     float64
	PnL        float64
	Duration   time.Duration
	Status     TradeStatus
	Reason     string // what triggered the close: stop, target, trailing, manual
	ClosedAt   time.Time
}

// StatusFor classifies a realized P&L value.
func StatusFor(pnl float64) TradeStatus {
	switch {
	case pnl > 0:
		return TradeWin
	case pnl < 0:
		return TradeLoss
	default:
		return TradeBreakeven
	}
}

// Order is a request handed to the trading execution provider.
type Order struct {
	Symbol string
	Side   SignalType
	Type   OrderType
	Price  float64
	Amount float64
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRecord is the provider's acknowledgement of a placed order.
type OrderRecord struct {
	OrderID  string
	Symbol   string
	Side     SignalType
	Price    float64
	Amount   float64
	Status   string
	PlacedAt time.Time
}
