package detectors

import (
	"crypto-trader/internal/analysis/features"
)

// Sentiment detectors pass through the external market context, which is
// already expressed in [-1, 1] and neutral (0) when the provider is down.

func scoreMarketSentiment(b *features.Bundle) float64 {
	return b.Context.Sentiment
}

func scoreNewsSentiment(b *features.Bundle) float64 {
	return b.Context.News
}

func scoreWhaleActivity(b *features.Bundle) float64 {
	return b.Context.WhaleActivity
}
