package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/sashabaranov/go-openai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	client, err := NewClientWithConfig(cfg, "gpt-4o-mini")
	if err != nil {
		t.Fatalf("NewClientWithConfig() failed: %v", err)
	}
	client.InitialDelay = time.Millisecond
	client.MaxDelay = 5 * time.Millisecond
	return client
}

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	})
	if err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewClient("key", ""); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestInvokeModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Authorization header with test-key")
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.Messages[0].Content != "What is the capital of France?" {
			t.Errorf("unexpected request %+v", req)
		}
		writeCompletion(t, w, "Paris")
	})

	resp, err := client.InvokeModel(context.Background(), llm.LLMRequest{Prompt: "What is the capital of France?", MaxTokens: 16})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Paris" {
		t.Errorf("expected Paris, got %q", resp.Content)
	}
	if resp.StopReason != string(openai.FinishReasonStop) {
		t.Errorf("expected stop reason stop, got %q", resp.StopReason)
	}
}

func TestInvokeModel_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})

	_, err := client.InvokeModel(context.Background(), llm.LLMRequest{Prompt: "x"})
	if !errors.Is(err, llm.ErrLLMUnavailable) {
		t.Errorf("expected ErrLLMUnavailable, got %v", err)
	}
}

func TestInvokeModelWithRetry_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		writeCompletion(t, w, "ok")
	})

	resp, err := client.InvokeModelWithRetry(context.Background(), llm.LLMRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" || calls != 3 {
		t.Errorf("expected ok after 3 calls, got %q after %d", resp.Content, calls)
	}
}

func TestInvokeModelWithRetry_StopsOnClientError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	if _, err := client.InvokeModelWithRetry(context.Background(), llm.LLMRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}
