package trading

import "crypto-trader/internal/models"

// exitAction is the monitor loop's verdict for a position at a price.
type exitAction int

const (
	exitNone exitAction = iota
	exitStop
	exitTrailing
	exitTarget
)

// tracked wraps an open position with the exit bookkeeping the provider does
// not know about: executed ladder rungs, trailing watermarks, and the
// original stop so trailing exits can be told apart from plain stops.
type tracked struct {
	pos         *models.Position
	executed    []bool
	highWater   float64
	lowWater    float64
	initialStop float64
}

func newTracked(pos *models.Position) *tracked {
	return &tracked{
		pos:         pos,
		executed:    make([]bool, len(pos.Targets)),
		highWater:   pos.EntryPrice,
		lowWater:    pos.EntryPrice,
		initialStop: pos.StopLoss,
	}
}

// evaluate updates trailing state and ladder progress at the given price and
// returns the action to take. Intermediate ladder rungs do not close the
// position; they ratchet the stop to lock in the previous rung. A stop, once
// tightened, is never loosened.
func (t *tracked) evaluate(price float64) (exitAction, string) {
	long := t.pos.Side == models.SignalBuy

	if t.pos.Trailing.Enabled && t.pos.Trailing.Percent > 0 {
		t.trail(price, long)
	}

	if t.stopHit(price, long) {
		if t.pos.StopLoss != t.initialStop {
			return exitTrailing, "trailing"
		}
		return exitStop, "stop"
	}

	for i, target := range t.pos.Targets {
		if t.executed[i] || !t.rungHit(price, target.Price, long) {
			continue
		}
		t.executed[i] = true
		if i == len(t.pos.Targets)-1 {
			return exitTarget, "target"
		}
		t.ratchetStop(i, long)
	}

	return exitNone, ""
}

func (t *tracked) trail(price float64, long bool) {
	pct := t.pos.Trailing.Percent / 100
	if long {
		if price > t.highWater {
			t.highWater = price
		}
		if candidate := t.highWater * (1 - pct); candidate > t.pos.StopLoss {
			t.pos.StopLoss = candidate
		}
	} else {
		if price < t.lowWater {
			t.lowWater = price
		}
		if candidate := t.lowWater * (1 + pct); candidate < t.pos.StopLoss {
			t.pos.StopLoss = candidate
		}
	}
}

func (t *tracked) stopHit(price float64, long bool) bool {
	if t.pos.StopLoss <= 0 {
		return false
	}
	if long {
		return price <= t.pos.StopLoss
	}
	return price >= t.pos.StopLoss
}

func (t *tracked) rungHit(price, target float64, long bool) bool {
	if long {
		return price >= target
	}
	return price <= target
}

// ratchetStop moves the stop to the previous rung after an intermediate
// ladder target fills: entry price after the first rung, the prior rung's
// price after later ones. Only ever tightens.
func (t *tracked) ratchetStop(rung int, long bool) {
	lock := t.pos.EntryPrice
	if rung > 0 {
		lock = t.pos.Targets[rung-1].Price
	}
	if long {
		if lock > t.pos.StopLoss {
			t.pos.StopLoss = lock
		}
	} else {
		if lock < t.pos.StopLoss {
			t.pos.StopLoss = lock
		}
	}
}

// executedRungs returns the indices of filled ladder targets.
func (t *tracked) executedRungs() []int {
	var out []int
	for i, done := range t.executed {
		if done {
			out = append(out, i)
		}
	}
	return out
}
