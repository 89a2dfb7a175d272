package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ClientAdapter implements Adapter on top of an LLMClient, applying the
// per-call timeout and mapping provider failures onto the LLM sentinels.
type ClientAdapter struct {
	client LLMClient
	logger *zerolog.Logger
}

func NewAdapter(client LLMClient, logger *zerolog.Logger) *ClientAdapter {
	return &ClientAdapter{
		client: client,
		logger: logger,
	}
}

func (a *ClientAdapter) Invoke(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
	callCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	request := LLMRequest{
		Prompt:      prompt,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	now := time.Now()
	var resp *LLMResponse
	var err error
	if cfg.Retry {
		resp, err = a.client.InvokeModelWithRetry(callCtx, request)
	} else {
		resp, err = a.client.InvokeModel(callCtx, request)
	}

	if err != nil {
		err = classify(ctx, callCtx, err)
		a.logger.Error().
			Err(err).
			Dur("duration", time.Since(now)).
			Msg("LLM call failed")
		return "", err
	}

	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ErrLLMUnavailable)
	}

	a.logger.Debug().
		Str("stop_reason", resp.StopReason).
		Int("completion_len", len(resp.Content)).
		Dur("duration", time.Since(now)).
		Msg("LLM call completed")

	return resp.Content, nil
}

// classify maps a client error onto the adapter's error contract. The
// caller's own cancellation is returned as is.
func classify(parent, call context.Context, err error) error {
	if errors.Is(err, ErrLLMTimeout) || errors.Is(err, ErrLLMUnavailable) {
		return err
	}
	if parent.Err() != nil {
		return fmt.Errorf("llm call aborted: %w", parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLLMTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrLLMUnavailable, err)
}
