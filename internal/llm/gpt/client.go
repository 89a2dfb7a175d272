package gpt

import (
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	Client       *openai.Client
	ModelID      string
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func NewClient(apiKey string, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return NewClientWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewClientWithConfig allows pointing the client at a compatible endpoint.
func NewClientWithConfig(cfg openai.ClientConfig, model string) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("OpenAI model ID is required")
	}

	return &Client{
		Client:       openai.NewClientWithConfig(cfg),
		ModelID:      model,
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     12 * time.Second,
	}, nil
}
