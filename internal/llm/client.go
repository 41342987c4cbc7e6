package llm

import (
	"context"
	"fmt"

	"github.com/hkmcoding/landie-next-sub000/internal/config"
)

// NewClient returns the provider selected by MODEL_PROVIDER
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.ModelProvider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ModelTimeout)
	case "gemini":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.ModelProvider)
	}
}

// EstimateTokens approximates the token count of text as len/4
func EstimateTokens(text ...string) int {
	n := 0
	for _, t := range text {
		n += len(t)
	}
	return n / 4
}
