package aggregator

import (
	"fmt"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

// Aggregation is everything one guardrail run produced.
type Aggregation struct {
	RequestID        string
	Input            *models.ChainResult
	Output           *models.ChainResult
	RejectionMessage string
	LLMInvoked       bool
	States           []models.State
	Err              error
	Duration         time.Duration
}

type Aggregator struct {
	logger *zerolog.Logger
}

func NewAggregator(logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		logger: logger,
	}
}

// Aggregate folds chain results into the final result. A run error wins
// over any content decision; otherwise a single block verdict blocks.
func (a *Aggregator) Aggregate(in Aggregation) models.GuardrailResult {
	result := models.GuardrailResult{
		RequestID:  in.RequestID,
		Input:      in.Input,
		Output:     in.Output,
		LLMInvoked: in.LLMInvoked,
		States:     append([]models.State(nil), in.States...),
		Duration:   in.Duration,
	}

	for _, v := range result.Verdicts() {
		if v.Outcome != models.OutcomePass || v.Warning != "" || v.Modified() {
			result.Triggered = append(result.Triggered, models.TriggeredRail{
				Name:    v.RailName,
				Stage:   v.Stage,
				Outcome: v.Outcome,
				Score:   v.Score,
			})
		}
		if v.Warning != "" {
			result.Warnings = append(result.Warnings, v.Warning)
		}
		if v.Outcome == models.OutcomeWarn {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", v.RailName, warnReason(v)))
		}
	}

	switch {
	case in.Err != nil:
		result.Decision = models.DecisionFailed
		result.Error = in.Err.Error()
	case blocked(result.Verdicts()):
		result.Decision = models.DecisionBlocked
		result.Text = in.RejectionMessage
	default:
		result.Text = finalText(in)
		result.Decision = models.DecisionAllowed
		if modified(in.Input) || modified(in.Output) {
			result.Decision = models.DecisionModified
		}
	}

	a.logger.
		Info().
		Str("request_id", result.RequestID).
		Str("decision", string(result.Decision)).
		Int("triggered", len(result.Triggered)).
		Bool("llm_invoked", result.LLMInvoked).
		Dur("duration", result.Duration).
		Msg("aggregation complete")

	return result
}

func blocked(verdicts []models.Verdict) bool {
	for _, v := range verdicts {
		if v.Outcome == models.OutcomeBlock {
			return true
		}
	}
	return false
}

func modified(r *models.ChainResult) bool {
	return r != nil && r.Modified
}

func finalText(in Aggregation) string {
	if in.Output != nil {
		return in.Output.Text
	}
	if in.Input != nil {
		return in.Input.Text
	}
	return ""
}

func warnReason(v models.Verdict) string {
	if v.Reason != "" {
		return v.Reason
	}
	if v.Modified() {
		return "text modified"
	}
	return "warning"
}
