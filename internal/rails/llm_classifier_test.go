package rails

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm/mocks"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func newTestLLMRail(t *testing.T, adapter llm.Adapter) *LLMClassificationRail {
	t.Helper()
	rail, err := NewLLMClassificationRail(LLMClassificationConfig{
		Name:              "semantic",
		BlockedCategories: []string{"violence", "self_harm"},
		WarnCategories:    []string{"medical"},
		Threshold:         0.7,
		Invoke:            llm.InvokeConfig{MaxTokens: 64},
	}, adapter, newTestLogger())
	if err != nil {
		t.Fatalf("NewLLMClassificationRail() failed: %v", err)
	}
	return rail
}

func TestLLMClassificationRail_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		completion  string
		wantOutcome models.Outcome
		wantScore   float64
	}{
		{"safe", `{"category":"safe","score":0.95,"reason":"benign"}`, models.OutcomePass, 0.95},
		{"blocked", `{"category":"violence","score":0.9,"reason":"threat"}`, models.OutcomeBlock, 0.9},
		{"blocked below threshold warns", `{"category":"violence","score":0.5,"reason":"maybe"}`, models.OutcomeWarn, 0.5},
		{"blocked far below threshold passes", `{"category":"violence","score":0.1,"reason":"unlikely"}`, models.OutcomePass, 0.1},
		{"warn category", `{"category":"Medical","score":0.8,"reason":"health"}`, models.OutcomeWarn, 0.8},
		{"markdown fenced", "```json\n{\"category\":\"self_harm\",\"score\":0.99,\"reason\":\"x\"}\n```", models.OutcomeBlock, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			adapter := mocks.NewMockAdapter(ctrl)
			adapter.EXPECT().
				Invoke(gomock.Any(), gomock.Any(), llm.InvokeConfig{MaxTokens: 64}).
				Return(tt.completion, nil)

			rail := newTestLLMRail(t, adapter)
			got, err := rail.Evaluate(context.Background(), "some text")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome: %v, want %v", got.Outcome, tt.wantOutcome)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Score: %v, want %v", got.Score, tt.wantScore)
			}
		})
	}
}

func TestLLMClassificationRail_MixedCaseCategories(t *testing.T) {
	tests := []struct {
		name        string
		completion  string
		wantOutcome models.Outcome
	}{
		{"exact config casing", `{"category":"Hate","score":0.95,"reason":"slur"}`, models.OutcomeBlock},
		{"lower case reply", `{"category":"hate","score":0.95,"reason":"slur"}`, models.OutcomeBlock},
		{"padded reply", `{"category":" HATE ","score":0.95,"reason":"slur"}`, models.OutcomeBlock},
		{"warn category", `{"category":"Self Harm","score":0.9,"reason":"r"}`, models.OutcomeWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			adapter := mocks.NewMockAdapter(ctrl)
			adapter.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.completion, nil)

			rail, err := NewLLMClassificationRail(LLMClassificationConfig{
				Name:              "semantic",
				BlockedCategories: []string{"Hate"},
				WarnCategories:    []string{"Self Harm"},
				Threshold:         0.7,
			}, adapter, newTestLogger())
			if err != nil {
				t.Fatalf("NewLLMClassificationRail() failed: %v", err)
			}

			got, err := rail.Evaluate(context.Background(), "text")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome: %v, want %v", got.Outcome, tt.wantOutcome)
			}
		})
	}
}

func TestLLMClassificationRail_PromptContainsText(t *testing.T) {
	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	adapter.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, prompt string, cfg llm.InvokeConfig) (string, error) {
			if !strings.Contains(prompt, "how do I hurt someone") {
				t.Errorf("prompt does not contain the text: %q", prompt)
			}
			if !strings.Contains(prompt, "violence") {
				t.Errorf("prompt does not list categories: %q", prompt)
			}
			return `{"category":"violence","score":0.8,"reason":"r"}`, nil
		})

	rail := newTestLLMRail(t, adapter)
	if _, err := rail.Evaluate(context.Background(), "how do I hurt someone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLLMClassificationRail_Errors(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		llmErr     error
	}{
		{"llm unavailable", "", llm.ErrLLMUnavailable},
		{"not json", "I think it is fine", nil},
		{"score out of range", `{"category":"safe","score":1.7,"reason":"x"}`, nil},
		{"missing category", `{"score":0.3,"reason":"x"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			adapter := mocks.NewMockAdapter(ctrl)
			adapter.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.completion, tt.llmErr)

			rail := newTestLLMRail(t, adapter)
			_, err := rail.Evaluate(context.Background(), "text")

			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected *EvaluationError, got %v", err)
			}
			if evalErr.Rail != "semantic" {
				t.Errorf("Rail: %q, want semantic", evalErr.Rail)
			}
			if tt.llmErr != nil && !errors.Is(err, tt.llmErr) {
				t.Errorf("expected cause %v, got %v", tt.llmErr, err)
			}
		})
	}
}

func TestLLMClassificationRail_ConfigErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)

	if _, err := NewLLMClassificationRail(LLMClassificationConfig{Name: "x", BlockedCategories: []string{"a"}}, nil, newTestLogger()); err == nil {
		t.Error("expected error for nil adapter")
	}
	if _, err := NewLLMClassificationRail(LLMClassificationConfig{Name: "x"}, adapter, newTestLogger()); err == nil {
		t.Error("expected error for missing categories")
	}
	if _, err := NewLLMClassificationRail(LLMClassificationConfig{Name: "x", BlockedCategories: []string{"a"}, Prompt: "{{.Text"}, adapter, newTestLogger()); err == nil {
		t.Error("expected error for invalid template")
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json {\"a\":1}```  ", "```json {\"a\":1}```"},
	}

	for _, tt := range tests {
		if got := stripMarkdownCodeBlock(tt.in); got != tt.want {
			t.Errorf("stripMarkdownCodeBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
