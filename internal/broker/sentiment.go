package broker

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"crypto-trader/internal/models"
)

// StaticSentiment returns a fixed market context, for paper trading and tests.
type StaticSentiment struct {
	Context models.MarketContext
}

func (s *StaticSentiment) GetMarketContext(ctx context.Context, symbol string) (models.MarketContext, error) {
	return s.Context, nil
}

// OpenAISentiment scores market context with a language model. Any failure
// (transport, parse, out-of-range values) yields the neutral context so the
// decision cycle is never blocked on the provider.
type OpenAISentiment struct {
	client *openai.Client
	model  string
}

// NewOpenAISentiment builds a provider. Model defaults to gpt-4o-mini.
func NewOpenAISentiment(apiKey, model string) *OpenAISentiment {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAISentiment{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

const sentimentPrompt = `Rate the current market context for %SYMBOL%.
Respond with only a JSON object:
{"sentiment": <-1..1>, "news": <-1..1>, "whale_activity": <-1..1>}`

func (o *OpenAISentiment) GetMarketContext(ctx context.Context, symbol string) (models.MarketContext, error) {
	neutral := models.MarketContext{}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: strings.ReplaceAll(sentimentPrompt, "%SYMBOL%", symbol),
			},
		},
		Temperature: 0,
	})
	if err != nil || len(resp.Choices) == 0 {
		return neutral, nil
	}

	var parsed struct {
		Sentiment     float64 `json:"sentiment"`
		News          float64 `json:"news"`
		WhaleActivity float64 `json:"whale_activity"`
	}
	content := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return neutral, nil
	}

	mctx := models.MarketContext{
		Sentiment:     clampUnit(parsed.Sentiment),
		News:          clampUnit(parsed.News),
		WhaleActivity: clampUnit(parsed.WhaleActivity),
	}
	return mctx, nil
}

// extractJSON pulls the first JSON object out of a possibly fenced response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "{}"
	}
	return s[start : end+1]
}

func clampUnit(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

var (
	_ SentimentProvider = (*StaticSentiment)(nil)
	_ SentimentProvider = (*OpenAISentiment)(nil)
)
