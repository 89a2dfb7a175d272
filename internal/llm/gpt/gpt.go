package gpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/sashabaranov/go-openai"
)

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	output, err := c.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.ModelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: request.Prompt},
		},
		MaxTokens:   request.MaxTokens,
		Temperature: float32(request.Temperature),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: unable to invoke gpt model: %w", llm.ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("%w: unable to invoke gpt model: %w", llm.ErrLLMUnavailable, err)
	}

	if len(output.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", llm.ErrLLMUnavailable)
	}

	choice := output.Choices[0]
	return &llm.LLMResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}, nil
}

func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.InitialDelay
	expo.MaxInterval = c.MaxDelay

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.MaxRetries)), ctx)

	return backoff.RetryWithData(func() (*llm.LLMResponse, error) {
		response, err := c.InvokeModel(ctx, request)
		if err != nil && !isRetryableError(err) {
			return nil, backoff.Permanent(err)
		}
		return response, err
	}, policy)
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
