// Package broker defines the external collaborator interfaces the engine
// depends on, plus paper/simulated implementations for offline operation.
package broker

import (
	"context"

	"crypto-trader/internal/models"
)

// MarketData supplies price history and current rates. Implementations may
// return fewer bars than requested; the analysis pipeline decides whether
// that is enough.
type MarketData interface {
	GetHistory(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
	GetRate(ctx context.Context, pair string) (float64, error)
}

// Trader executes orders and reports account state. Failures surface as typed
// errors the engine logs and recovers from.
type Trader interface {
	PlaceOrder(ctx context.Context, order models.Order) (*models.OrderRecord, error)
	GetPositions(ctx context.Context) ([]*models.Position, error)
	ClosePosition(ctx context.Context, symbol string) (*models.TradeResult, error)
	GetAvailableBalance(ctx context.Context, asset string) (float64, error)
}

// SentimentProvider supplies external market context. Callers fall back to a
// neutral context when a fetch fails; the decision cycle never blocks on it.
type SentimentProvider interface {
	GetMarketContext(ctx context.Context, symbol string) (models.MarketContext, error)
}
