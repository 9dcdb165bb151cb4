package detectors

import (
	"crypto-trader/internal/errors"
)

// Weights maps detector IDs to configured weights. Missing entries fall back
// to the defaults, so a partial config table is valid.
type Weights map[ID]float64

var defaultWeights = Weights{
	TrendFollow:     1.0,
	Momentum:        0.9,
	MACDCross:       0.8,
	BollingerRevert: 0.6,
	ADXStrength:     0.7,

	LiquiditySweep: 0.8,
	OrderBlock:     0.7,
	FairValueGap:   0.6,

	CandleEngulfing: 0.8,
	Breakout:        0.9,
	ROCAccel:        0.5,

	MarketSentiment: 1.0,
	NewsSentiment:   0.9,
	WhaleActivity:   0.6,

	MLComposite: 1.0,
	MLMeanRev:   0.7,
}

// DefaultWeights returns a copy of the built-in weight table.
func DefaultWeights() Weights {
	w := make(Weights, len(defaultWeights))
	for id, v := range defaultWeights {
		w[id] = v
	}
	return w
}

func (w Weights) get(id ID) float64 {
	if w != nil {
		if v, ok := w[id]; ok {
			return v
		}
	}
	return defaultWeights[id]
}

// ParseWeights converts a raw config table into Weights, rejecting keys that
// do not name a known detector. The detector set is closed; typos in a config
// file fail fast instead of silently registering nothing.
func ParseWeights(raw map[string]float64) (Weights, error) {
	w := DefaultWeights()
	for key, v := range raw {
		id := ID(key)
		if _, known := defaultWeights[id]; !known {
			return nil, errors.Wrapf(errors.ErrUnknownDetector, "weight key %q", key)
		}
		w[id] = v
	}
	return w, nil
}
