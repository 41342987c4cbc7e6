package llm

import "context"

// Request is a single system+user exchange expecting a JSON object back
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is the raw model reply plus token accounting
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Client defines the contract for suggestion model providers
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	Model() string
}
