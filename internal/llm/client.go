package llm

import (
	"context"
)

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// LLMClient is an interface for invoking LLM models
// This allows mocking in tests without making real API calls
type LLMClient interface {
	InvokeModel(ctx context.Context, request LLMRequest) (*LLMResponse, error)
	InvokeModelWithRetry(ctx context.Context, request LLMRequest) (*LLMResponse, error)
}

// Adapter is the boundary the guardrail system talks to. Errors wrap
// ErrLLMUnavailable or ErrLLMTimeout, or the caller's context error.
type Adapter interface {
	Invoke(ctx context.Context, prompt string, cfg InvokeConfig) (string, error)
}
