package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crypto-trader/internal/errors"
	"crypto-trader/internal/models"
)

// rateTTL bounds how long a fetched quote is reused before refetching.
const rateTTL = 5 * time.Second

type cachedRate struct {
	price float64
	at    time.Time
}

// PaperTrader simulates order execution against live or simulated market
// data. Positions and balance live in memory only.
type PaperTrader struct {
	data MarketData
	now  func() time.Time

	mu         sync.RWMutex
	positions  map[string]*models.Position
	balance    float64
	priceCache map[string]cachedRate
	counter    int
}

// NewPaperTrader creates a paper trader with the given starting balance.
func NewPaperTrader(data MarketData, initialBalance float64) *PaperTrader {
	if initialBalance == 0 {
		initialBalance = 10000
	}
	return &PaperTrader{
		data:       data,
		now:        time.Now,
		positions:  make(map[string]*models.Position),
		balance:    initialBalance,
		priceCache: make(map[string]cachedRate),
	}
}

// PlaceOrder fills market orders at the current rate and limit orders at
// their limit price. Opposite-side orders against an open position close it.
func (p *PaperTrader) PlaceOrder(ctx context.Context, order models.Order) (*models.OrderRecord, error) {
	price := order.Price
	if order.Type == models.OrderTypeMarket {
		rate, err := p.rate(ctx, order.Symbol)
		if err != nil {
			return nil, errors.NewOrderError(order.Symbol, string(order.Side), "no market rate", err)
		}
		price = rate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cost := price * order.Amount
	if order.Side == models.SignalBuy && p.balance < cost {
		return nil, errors.NewOrderError(order.Symbol, string(order.Side),
			fmt.Sprintf("need %.2f, have %.2f", cost, p.balance), errors.ErrInsufficientFunds)
	}

	p.counter++
	rec := &models.OrderRecord{
		OrderID:  fmt.Sprintf("PAPER_%d_%d", time.Now().Unix(), p.counter),
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    price,
		Amount:   order.Amount,
		Status:   "FILLED",
		PlacedAt: time.Now(),
	}

	if pos, ok := p.positions[order.Symbol]; ok && pos.Side != order.Side {
		p.settle(pos, price)
	} else {
		p.positions[order.Symbol] = &models.Position{
			ID:         rec.OrderID,
			Symbol:     order.Symbol,
			Side:       order.Side,
			EntryPrice: price,
			Amount:     order.Amount,
			OpenedAt:   time.Now(),
		}
		if order.Side == models.SignalBuy {
			p.balance -= cost
		}
	}

	return rec, nil
}

// GetPositions returns copies of the open positions with refreshed P&L.
func (p *PaperTrader) GetPositions(ctx context.Context) ([]*models.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		cp := *pos
		if cached, ok := p.priceCache[pos.Symbol]; ok {
			cp.PnL = pos.UnrealizedPnL(cached.price)
		}
		out = append(out, &cp)
	}
	return out, nil
}

// ClosePosition closes the symbol's position at the current rate and returns
// the trade result, or a not-found error when nothing is open.
func (p *PaperTrader) ClosePosition(ctx context.Context, symbol string) (*models.TradeResult, error) {
	price, err := p.rate(ctx, symbol)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "symbol %s", symbol)
	}

	return p.settle(pos, price), nil
}

// GetAvailableBalance returns the simulated free balance.
func (p *PaperTrader) GetAvailableBalance(ctx context.Context, asset string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance, nil
}

// UpdatePrice feeds the simulation a price without a data fetch.
func (p *PaperTrader) UpdatePrice(symbol string, price float64) {
	p.mu.Lock()
	p.priceCache[symbol] = cachedRate{price: price, at: p.now()}
	p.mu.Unlock()
}

// Reset clears all simulated state back to the given balance.
func (p *PaperTrader) Reset(balance float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = make(map[string]*models.Position)
	p.priceCache = make(map[string]cachedRate)
	p.balance = balance
	p.counter = 0
}

// settle removes the position and realizes its P&L. Caller holds the lock.
func (p *PaperTrader) settle(pos *models.Position, price float64) *models.TradeResult {
	pnl := pos.UnrealizedPnL(price)
	delete(p.positions, pos.Symbol)

	if pos.Side == models.SignalBuy {
		p.balance += pos.EntryPrice*pos.Amount + pnl
	} else {
		p.balance += pnl
	}

	return &models.TradeResult{
		ID:         models.NewSignalID(),
		SignalID:   pos.SignalID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Amount:     pos.Amount,
		PnL:        pnl,
		Duration:   time.Since(pos.OpenedAt),
		Status:     models.StatusFor(pnl),
		ClosedAt:   time.Now(),
	}
}

func (p *PaperTrader) rate(ctx context.Context, symbol string) (float64, error) {
	p.mu.RLock()
	cached, ok := p.priceCache[symbol]
	p.mu.RUnlock()
	// Without a data source the manually fed price is authoritative;
	// otherwise a cached quote only survives for rateTTL.
	if ok && (p.data == nil || p.now().Sub(cached.at) < rateTTL) {
		return cached.price, nil
	}

	if p.data == nil {
		return 0, errors.NewProviderError("paper", "rate", symbol, fmt.Errorf("no data source"))
	}
	rate, err := p.data.GetRate(ctx, symbol)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.priceCache[symbol] = cachedRate{price: rate, at: p.now()}
	p.mu.Unlock()
	return rate, nil
}

var _ Trader = (*PaperTrader)(nil)
