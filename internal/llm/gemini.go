package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"google.golang.org/genai"
)

// GeminiClient generates suggestions with Google's Gemini API
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client. An empty API key is a
// configuration error.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &errs.ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "is required"}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Model() string {
	return g.model
}

// Complete runs one JSON-mode generation
func (g *GeminiClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), cfg)
	if err != nil {
		return nil, &errs.ExternalModelError{Provider: "gemini", Cause: err}
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &errs.ExternalModelError{Provider: "gemini", Cause: fmt.Errorf("empty response")}
	}

	completion := &Completion{Content: text, Model: g.model}
	if result.UsageMetadata != nil {
		completion.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		completion.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}
