package llm

import "time"

type LLMRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type LLMResponse struct {
	Content    string
	StopReason string
}

// InvokeConfig carries the per-call LLM parameters taken from the rails
// config.
type InvokeConfig struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Retry       bool
}
