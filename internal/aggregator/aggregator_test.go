package aggregator

import (
	"errors"
	"testing"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

const rejection = "I'm sorry, but I can't help with that request."

func chainResult(stage models.Stage, in, out string, verdicts ...models.Verdict) *models.ChainResult {
	r := &models.ChainResult{Stage: stage, InputText: in, Text: out, Modified: in != out}
	for _, v := range verdicts {
		v.Stage = stage
		r.Verdicts = append(r.Verdicts, v)
		if v.Outcome == models.OutcomeBlock {
			r.Blocked = true
			r.BlockedBy = v.RailName
		}
	}
	return r
}

func TestAggregate_Allowed(t *testing.T) {
	agg := NewAggregator(newTestLogger())

	result := agg.Aggregate(Aggregation{
		RequestID:        "req-1",
		Input:            chainResult(models.StageInput, "What is the capital of France?", "What is the capital of France?", models.Verdict{RailName: "pii", Outcome: models.OutcomePass}),
		Output:           chainResult(models.StageOutput, "Paris.", "Paris.", models.Verdict{RailName: "toxicity", Outcome: models.OutcomePass}),
		RejectionMessage: rejection,
		LLMInvoked:       true,
	})

	if result.Decision != models.DecisionAllowed {
		t.Errorf("expected allowed, got %s", result.Decision)
	}
	if result.Text != "Paris." {
		t.Errorf("expected completion text, got %q", result.Text)
	}
	if len(result.Triggered) != 0 {
		t.Errorf("expected no triggered rails, got %+v", result.Triggered)
	}
}

func TestAggregate_Blocked(t *testing.T) {
	agg := NewAggregator(newTestLogger())

	result := agg.Aggregate(Aggregation{
		RequestID:        "req-2",
		Input:            chainResult(models.StageInput, "My SSN is 123-45-6789", "My SSN is 123-45-6789", models.Verdict{RailName: "pii", Outcome: models.OutcomeBlock, Score: 1}),
		RejectionMessage: rejection,
	})

	if !result.IsBlocked() {
		t.Fatalf("expected blocked, got %s", result.Decision)
	}
	if result.Text != rejection {
		t.Errorf("expected rejection message, got %q", result.Text)
	}
	if len(result.Triggered) != 1 || result.Triggered[0].Name != "pii" || result.Triggered[0].Stage != models.StageInput {
		t.Errorf("unexpected triggered rails %+v", result.Triggered)
	}
}

func TestAggregate_Modified(t *testing.T) {
	agg := NewAggregator(newTestLogger())

	result := agg.Aggregate(Aggregation{
		Input: chainResult(models.StageInput, "email a@b.com", "email [REDACTED-EMAIL]",
			models.Verdict{RailName: "pii", Outcome: models.OutcomeWarn, Score: 1, Text: "email [REDACTED-EMAIL]"}),
	})

	if result.Decision != models.DecisionModified {
		t.Errorf("expected modified, got %s", result.Decision)
	}
	if result.Text != "email [REDACTED-EMAIL]" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if len(result.Warnings) != 1 || result.Warnings[0] != "pii: text modified" {
		t.Errorf("unexpected warnings %v", result.Warnings)
	}
}

func TestAggregate_FailOpenWarning(t *testing.T) {
	agg := NewAggregator(newTestLogger())

	result := agg.Aggregate(Aggregation{
		Input: chainResult(models.StageInput, "hi", "hi",
			models.Verdict{RailName: "semantic", Outcome: models.OutcomePass, Warning: "rail semantic failed open: llm unavailable"}),
	})

	if result.Decision != models.DecisionAllowed {
		t.Errorf("expected allowed, got %s", result.Decision)
	}
	if len(result.Triggered) != 1 {
		t.Errorf("expected failed-open rail in triggered list, got %+v", result.Triggered)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", result.Warnings)
	}
}

func TestAggregate_ErrorWinsOverContent(t *testing.T) {
	agg := NewAggregator(newTestLogger())

	result := agg.Aggregate(Aggregation{
		Input:      chainResult(models.StageInput, "hi", "hi", models.Verdict{RailName: "pii", Outcome: models.OutcomePass}),
		LLMInvoked: true,
		States:     []models.State{models.StateIdle, models.StateRunningInputRails, models.StateInvokingLLM, models.StateFailed},
		Err:        errors.New("llm unavailable"),
		Duration:   time.Second,
	})

	if result.Decision != models.DecisionFailed {
		t.Errorf("expected failed, got %s", result.Decision)
	}
	if result.Error != "llm unavailable" || result.Text != "" {
		t.Errorf("unexpected error/text: %q / %q", result.Error, result.Text)
	}
	if result.FinalState() != models.StateFailed {
		t.Errorf("expected final state failed, got %s", result.FinalState())
	}
}
