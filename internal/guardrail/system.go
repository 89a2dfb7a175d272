package guardrail

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/aggregator"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/telemetry"
	"github.com/rs/zerolog"
)

//go:generate mockgen -source=system.go -destination=mocks/mock_system.go -package=mocks

var ErrRailNotFound = errors.New("rail not found")

// Aggregator builds the final result of a run.
type Aggregator interface {
	Aggregate(in aggregator.Aggregation) models.GuardrailResult
}

// Guard is the surface the API, MCP, stream and batch layers depend on.
type Guard interface {
	ProcessRequest(ctx context.Context, req models.GuardRequest) (models.GuardrailResult, error)
	CheckInput(ctx context.Context, text string) (models.GuardrailResult, error)
	CheckOutput(ctx context.Context, text string) (models.GuardrailResult, error)
	CheckRail(ctx context.Context, name, text string) (models.GuardrailResult, error)
	Rails() []RailInfo
}

// System runs prompts through input rails, the LLM and output rails. Each
// call is an independent run over the pipeline snapshot current at its
// start.
type System struct {
	pipeline   atomic.Pointer[Pipeline]
	adapter    llm.Adapter
	aggregator Aggregator
	recorder   telemetry.Recorder
	logger     *zerolog.Logger
}

func NewSystem(
	pipeline *Pipeline,
	adapter llm.Adapter,
	aggregator Aggregator,
	recorder telemetry.Recorder,
	logger *zerolog.Logger,
) *System {
	if recorder == nil {
		recorder = telemetry.NopRecorder{}
	}
	s := &System{
		adapter:    adapter,
		aggregator: aggregator,
		recorder:   recorder,
		logger:     logger,
	}
	s.pipeline.Store(pipeline)
	return s
}

// Reload swaps the pipeline. Requests already running finish on the old one.
func (s *System) Reload(p *Pipeline) {
	s.pipeline.Store(p)
	s.logger.Info().
		Int("rails", len(p.info)).
		Msg("guardrail pipeline reloaded")
}

func (s *System) Pipeline() *Pipeline {
	return s.pipeline.Load()
}

func (s *System) Rails() []RailInfo {
	return s.pipeline.Load().Rails()
}

// run tracks the states one request moves through.
type run struct {
	id     string
	start  time.Time
	states []models.State
}

func newRun(id string) *run {
	if id == "" {
		id = uuid.NewString()
	}
	return &run{id: id, start: time.Now(), states: []models.State{models.StateIdle}}
}

func (r *run) enter(state models.State) {
	r.states = append(r.states, state)
}

// Process guards a full prompt round trip. The LLM is never invoked when
// an input rail blocks. LLM failures end the run in the failed state and
// are returned wrapped.
func (s *System) Process(ctx context.Context, prompt string) (models.GuardrailResult, error) {
	return s.ProcessRequest(ctx, models.GuardRequest{Prompt: prompt})
}

// ProcessRequest is Process with the caller's event id used as request id.
func (s *System) ProcessRequest(ctx context.Context, req models.GuardRequest) (models.GuardrailResult, error) {
	p := s.pipeline.Load()
	r := newRun(req.EventID)

	s.logger.Info().Str("request_id", r.id).Msg("starting guardrail run")

	r.enter(models.StateRunningInputRails)
	input, err := p.Input.Run(ctx, req.Prompt)
	if err != nil {
		return s.fail(p, r, &input, nil, false, fmt.Errorf("input rails aborted: %w", err))
	}
	if input.Blocked {
		r.enter(models.StateBlocked)
		return s.finish(p, r, &input, nil, false), nil
	}

	r.enter(models.StateInvokingLLM)
	completion, err := s.invoke(ctx, p, input.Text)
	if err != nil {
		return s.fail(p, r, &input, nil, true, fmt.Errorf("llm invocation failed: %w", err))
	}

	r.enter(models.StateRunningOutputRails)
	output, err := p.Output.Run(ctx, completion)
	if err != nil {
		return s.fail(p, r, &input, &output, true, fmt.Errorf("output rails aborted: %w", err))
	}
	if output.Blocked {
		r.enter(models.StateBlocked)
	} else {
		r.enter(models.StateCompleted)
	}

	return s.finish(p, r, &input, &output, true), nil
}

func (s *System) invoke(ctx context.Context, p *Pipeline, prompt string) (string, error) {
	if s.adapter == nil {
		return "", fmt.Errorf("%w: no llm client configured", llm.ErrLLMUnavailable)
	}

	start := time.Now()
	completion, err := s.adapter.Invoke(ctx, prompt, p.LLM)
	s.recorder.LLMCall(err, time.Since(start))
	return completion, err
}

// CheckInput runs only the input rails.
func (s *System) CheckInput(ctx context.Context, text string) (models.GuardrailResult, error) {
	p := s.pipeline.Load()
	return s.check(ctx, p, p.Input.Run, text, models.StageInput)
}

// CheckOutput runs only the output rails.
func (s *System) CheckOutput(ctx context.Context, text string) (models.GuardrailResult, error) {
	p := s.pipeline.Load()
	return s.check(ctx, p, p.Output.Run, text, models.StageOutput)
}

// CheckRail evaluates text with a single configured rail, under the same
// failure policy and timeout as the chains.
func (s *System) CheckRail(ctx context.Context, name, text string) (models.GuardrailResult, error) {
	p := s.pipeline.Load()
	c, ok := p.single[name]
	if !ok {
		s.logger.Error().Str("rail", name).Msg("rail not found")
		return models.GuardrailResult{}, fmt.Errorf("%w: %s", ErrRailNotFound, name)
	}
	return s.check(ctx, p, c.Run, text, c.Stage())
}

type chainRun func(ctx context.Context, text string) (models.ChainResult, error)

func (s *System) check(ctx context.Context, p *Pipeline, runChain chainRun, text string, stage models.Stage) (models.GuardrailResult, error) {
	r := newRun("")

	running := models.StateRunningInputRails
	if stage == models.StageOutput {
		running = models.StateRunningOutputRails
	}
	r.enter(running)

	res, err := runChain(ctx, text)
	if err != nil {
		return s.failStage(p, r, stage, &res, fmt.Errorf("%s rails aborted: %w", stage, err))
	}
	if res.Blocked {
		r.enter(models.StateBlocked)
	} else {
		r.enter(models.StateCompleted)
	}

	if stage == models.StageOutput {
		return s.finish(p, r, nil, &res, false), nil
	}
	return s.finish(p, r, &res, nil, false), nil
}

func (s *System) failStage(p *Pipeline, r *run, stage models.Stage, res *models.ChainResult, err error) (models.GuardrailResult, error) {
	if stage == models.StageOutput {
		return s.fail(p, r, nil, res, false, err)
	}
	return s.fail(p, r, res, nil, false, err)
}

func (s *System) fail(p *Pipeline, r *run, input, output *models.ChainResult, invoked bool, err error) (models.GuardrailResult, error) {
	r.enter(models.StateFailed)
	s.logger.Error().
		Err(err).
		Str("request_id", r.id).
		Msg("guardrail run failed")

	result := s.aggregator.Aggregate(aggregator.Aggregation{
		RequestID:        r.id,
		Input:            input,
		Output:           output,
		RejectionMessage: p.RejectionMessage,
		LLMInvoked:       invoked,
		States:           r.states,
		Err:              err,
		Duration:         time.Since(r.start),
	})
	s.recorder.Decision(result.Decision, result.Duration)
	return result, err
}

func (s *System) finish(p *Pipeline, r *run, input, output *models.ChainResult, invoked bool) models.GuardrailResult {
	result := s.aggregator.Aggregate(aggregator.Aggregation{
		RequestID:        r.id,
		Input:            input,
		Output:           output,
		RejectionMessage: p.RejectionMessage,
		LLMInvoked:       invoked,
		States:           r.states,
		Duration:         time.Since(r.start),
	})
	s.recorder.Decision(result.Decision, result.Duration)

	s.logger.Info().
		Str("request_id", r.id).
		Str("decision", string(result.Decision)).
		Str("final_state", string(result.FinalState())).
		Msg("guardrail run complete")

	return result
}
