package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
)

type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

var anthropicVersion = "bedrock-2023-05-31"

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	payload := claudeMessageRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        request.MaxTokens,
		Temperature:      request.Temperature,
		Messages: []claudeMessage{
			{
				Role:    "user",
				Content: request.Prompt,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize claude request: %w", err)
	}

	output, err := c.Client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.ModelID,
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyError(err)
	}

	var response claudeMessageResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal bedrock response: %w", llm.ErrLLMUnavailable, err)
	}

	var content strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &llm.LLMResponse{
		Content:    content.String(),
		StopReason: response.StopReason,
	}, nil
}

func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.InitialDelay
	expo.MaxInterval = c.MaxDelay
	expo.RandomizationFactor = 0.2

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.MaxRetries)), ctx)

	return backoff.RetryWithData(func() (*llm.LLMResponse, error) {
		response, err := c.InvokeModel(ctx, request)
		if err != nil && !isRetryableError(err) {
			return nil, backoff.Permanent(err)
		}
		return response, err
	}, policy)
}

// classifyError wraps a Bedrock failure in the matching llm sentinel.
func classifyError(err error) error {
	var modelTimeout *types.ModelTimeoutException
	if errors.As(err, &modelTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: unable to invoke claude model: %w", llm.ErrLLMTimeout, err)
	}
	return fmt.Errorf("%w: unable to invoke claude model: %w", llm.ErrLLMUnavailable, err)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var (
		throttling  *types.ThrottlingException
		unavailable *types.ServiceUnavailableException
		internal    *types.InternalServerException
		notReady    *types.ModelNotReadyException
		timeout     *types.ModelTimeoutException
	)
	if errors.As(err, &throttling) ||
		errors.As(err, &unavailable) ||
		errors.As(err, &internal) ||
		errors.As(err, &notReady) ||
		errors.As(err, &timeout) {
		return true
	}

	// Network errors surface as plain strings from the HTTP layer.
	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "TooManyRequestsException")
}
