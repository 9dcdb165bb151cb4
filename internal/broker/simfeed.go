package broker

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"crypto-trader/internal/models"
)

// SimFeed generates deterministic synthetic price history, seeded per symbol
// so repeated runs see the same market. Used for paper trading and demos.
type SimFeed struct {
	mu        sync.Mutex
	basePrice float64
	now       func() time.Time
}

// NewSimFeed creates a synthetic feed anchored at the given base price.
func NewSimFeed(basePrice float64) *SimFeed {
	if basePrice <= 0 {
		basePrice = 50000
	}
	return &SimFeed{basePrice: basePrice, now: time.Now}
}

// GetHistory generates limit bars ending at the current time, following a
// bounded random walk with symbol-stable seeding.
func (s *SimFeed) GetHistory(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	barDur := tf.Duration()
	end := s.now().Truncate(barDur)
	// Mixing the bar timestamp into the seed re-rolls the walk every bar,
	// so quotes keep moving over a long session.
	rng := rand.New(rand.NewSource(seedFor(symbol, tf) ^ end.UnixNano()))

	candles := make([]models.Candle, limit)
	price := s.basePrice * (0.8 + 0.4*rng.Float64())
	for i := 0; i < limit; i++ {
		drift := (rng.Float64() - 0.5) * 0.02 * price
		open := price
		close := price + drift
		wick := math.Abs(drift) * (0.5 + rng.Float64())
		candles[i] = models.Candle{
			Timestamp: end.Add(time.Duration(i-limit+1) * barDur),
			Open:      open,
			High:      math.Max(open, close) + wick,
			Low:       math.Min(open, close) - wick,
			Close:     close,
			Volume:    1000 + rng.Float64()*9000,
		}
		price = close
	}
	return candles, nil
}

// GetRate returns the latest simulated close with a small per-minute jitter,
// so stop and target checks see the quote move between bar boundaries.
func (s *SimFeed) GetRate(ctx context.Context, pair string) (float64, error) {
	history, err := s.GetHistory(ctx, pair, models.TimeframeMedium, models.MinAnalysisBars)
	if err != nil {
		return 0, err
	}
	last := history[len(history)-1].Close

	tick := s.now().Truncate(time.Minute).UnixNano()
	rng := rand.New(rand.NewSource(seedFor(pair, models.TimeframeMedium) ^ tick))
	return last * (1 + (rng.Float64()-0.5)*0.01), nil
}

func seedFor(symbol string, tf models.Timeframe) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(tf))
	return int64(h.Sum64())
}

var _ MarketData = (*SimFeed)(nil)
