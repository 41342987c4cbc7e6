package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/sirupsen/logrus"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	apiKey string
	model  string
	client *resty.Client
}

// Ensure OpenAIClient implements Client
var _ Client = (*OpenAIClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient creates a chat completions client. An empty API key is a
// configuration error.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &errs.ConfigurationError{Setting: "OPENAI_API_KEY", Reason: "is required"}
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json"),
	}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one JSON-mode chat completion
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/chat/completions")

	if err != nil {
		return nil, &errs.ExternalModelError{Provider: "openai", Cause: err}
	}

	if resp.IsError() {
		return nil, &errs.ExternalModelError{
			Provider:   "openai",
			StatusCode: resp.StatusCode(),
			Cause:      fmt.Errorf("%s", truncate(resp.String(), 500)),
		}
	}

	if len(out.Choices) == 0 {
		return nil, &errs.ExternalModelError{Provider: "openai", Cause: fmt.Errorf("no choices in response")}
	}

	choice := out.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, &errs.ExternalModelError{Provider: "openai", Cause: fmt.Errorf("model refused: %s", choice.Message.Refusal)}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &errs.ExternalModelError{Provider: "openai", Cause: fmt.Errorf("empty completion (finish_reason=%s)", choice.FinishReason)}
	}

	logrus.WithFields(logrus.Fields{
		"model":             out.Model,
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
	}).Debug("OpenAI completion received")

	model := out.Model
	if model == "" {
		model = c.model
	}

	return &Completion{
		Content:          choice.Message.Content,
		Model:            model,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
