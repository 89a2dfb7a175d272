package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/rails"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Policy models.FailurePolicy
	// Timeout bounds a single rail evaluation. Zero disables it.
	Timeout time.Duration
	// PolicyOverrides maps rail names to a policy that replaces Policy.
	PolicyOverrides map[string]models.FailurePolicy
	Tracer          trace.Tracer
	Recorder        telemetry.Recorder
	Logger          *zerolog.Logger
}

// RailChain runs the rails of one stage in declared order. It holds no
// per-request state and may be shared between goroutines.
type RailChain struct {
	stage     models.Stage
	rails     []rails.Rail
	policy    models.FailurePolicy
	overrides map[string]models.FailurePolicy
	timeout   time.Duration
	tracer    trace.Tracer
	recorder  telemetry.Recorder
	logger    *zerolog.Logger
}

func New(stage models.Stage, rs []rails.Rail, opts Options) *RailChain {
	policy := opts.Policy
	if !policy.Valid() {
		policy = models.PolicyClosed
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}

	var recorder telemetry.Recorder = telemetry.NopRecorder{}
	if opts.Recorder != nil {
		recorder = opts.Recorder
	}

	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	overrides := make(map[string]models.FailurePolicy, len(opts.PolicyOverrides))
	for name, p := range opts.PolicyOverrides {
		overrides[name] = p
	}

	return &RailChain{
		stage:     stage,
		rails:     append([]rails.Rail(nil), rs...),
		policy:    policy,
		overrides: overrides,
		timeout:   opts.Timeout,
		tracer:    tracer,
		recorder:  recorder,
		logger:    logger,
	}
}

func (c *RailChain) Stage() models.Stage {
	return c.stage
}

func (c *RailChain) Rails() []rails.Rail {
	return append([]rails.Rail(nil), c.rails...)
}

// Run evaluates text through every rail. Each rail sees the text produced
// by the rail before it. The first block stops the chain. A done parent
// context aborts the run with the context error and the verdicts gathered
// so far.
func (c *RailChain) Run(ctx context.Context, text string) (models.ChainResult, error) {
	start := time.Now()
	result := models.ChainResult{
		Stage:     c.stage,
		InputText: text,
		Text:      text,
		Verdicts:  make([]models.Verdict, 0, len(c.rails)),
	}

	current := text
	for _, rail := range c.rails {
		if err := ctx.Err(); err != nil {
			result.Text = current
			result.Duration = time.Since(start)
			return result, err
		}

		verdict, err := c.runRail(ctx, rail, current)
		if err != nil {
			result.Text = current
			result.Duration = time.Since(start)
			return result, err
		}

		result.Verdicts = append(result.Verdicts, verdict)

		if verdict.Outcome == models.OutcomeBlock {
			result.Blocked = true
			result.BlockedBy = verdict.RailName
			c.logger.Info().
				Str("stage", string(c.stage)).
				Str("rail", verdict.RailName).
				Str("reason", verdict.Reason).
				Msg("rail blocked text")
			break
		}

		if verdict.Modified() {
			current = verdict.Text
		}
	}

	result.Text = current
	result.Modified = current != text
	result.Duration = time.Since(start)

	return result, nil
}

// runRail returns a normalized verdict. It only returns an error when the
// parent context is done.
func (c *RailChain) runRail(ctx context.Context, rail rails.Rail, text string) (models.Verdict, error) {
	name := rail.Name()
	ctx, span := c.tracer.Start(ctx, "guardrail.rail",
		trace.WithAttributes(
			attribute.String("guardrail.name", name),
			attribute.String("guardrail.type", string(rail.Category())),
			attribute.String("guardrail.stage", string(c.stage)),
		),
	)
	defer span.End()

	start := time.Now()
	verdict, err := c.evaluate(ctx, rail, text)
	duration := time.Since(start)

	if err != nil && ctx.Err() != nil {
		span.SetStatus(codes.Error, "aborted")
		return models.Verdict{}, ctx.Err()
	}

	if err == nil {
		err = validate(name, verdict)
	}

	if err != nil {
		var evalErr *rails.EvaluationError
		if !errors.As(err, &evalErr) {
			evalErr = rails.NewEvaluationError(name, err)
		}
		span.RecordError(evalErr)
		span.SetStatus(codes.Error, evalErr.Error())
		c.recorder.RailFailed(c.stage, name, evalErr.Timeout)
		verdict = c.applyPolicy(rail, evalErr)
	}

	verdict.RailName = name
	verdict.Category = rail.Category()
	verdict.Stage = c.stage
	verdict.Duration = duration
	if verdict.Outcome == models.OutcomeBlock {
		verdict.Text = ""
	}

	span.SetAttributes(
		attribute.String("guardrail.action", string(verdict.Outcome)),
		attribute.Float64("guardrail.score", verdict.Score),
		attribute.String("guardrail.reason", verdict.Reason),
	)
	c.recorder.RailEvaluated(c.stage, name, verdict.Outcome, duration)

	return verdict, nil
}

type evaluation struct {
	verdict models.Verdict
	err     error
}

// evaluate runs the rail under the per-rail deadline. A rail that misses
// the deadline is abandoned and its late result dropped.
func (c *RailChain) evaluate(ctx context.Context, rail rails.Rail, text string) (models.Verdict, error) {
	if c.timeout <= 0 {
		return safeEvaluate(ctx, rail, text)
	}

	railCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan evaluation, 1)
	go func() {
		v, err := safeEvaluate(railCtx, rail, text)
		done <- evaluation{verdict: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(railCtx.Err(), context.DeadlineExceeded) {
			return models.Verdict{}, rails.NewEvaluationError(rail.Name(), rails.ErrRailTimeout)
		}
		return res.verdict, res.err
	case <-railCtx.Done():
		if err := ctx.Err(); err != nil {
			return models.Verdict{}, err
		}
		return models.Verdict{}, rails.NewEvaluationError(rail.Name(), rails.ErrRailTimeout)
	}
}

func safeEvaluate(ctx context.Context, rail rails.Rail, text string) (v models.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rails.NewEvaluationError(rail.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	return rail.Evaluate(ctx, text)
}

func validate(name string, v models.Verdict) error {
	if !v.Outcome.Valid() {
		return rails.NewEvaluationError(name, fmt.Errorf("%w: unknown outcome %q", rails.ErrInvalidVerdict, v.Outcome))
	}
	if v.Score < 0 || v.Score > 1 {
		return rails.NewEvaluationError(name, fmt.Errorf("%w: score %v out of range", rails.ErrInvalidVerdict, v.Score))
	}
	return nil
}

func (c *RailChain) policyFor(name string) models.FailurePolicy {
	if p, ok := c.overrides[name]; ok && p.Valid() {
		return p
	}
	return c.policy
}

// applyPolicy converts a rail failure into a verdict according to the rail's
// failure policy.
func (c *RailChain) applyPolicy(rail rails.Rail, evalErr *rails.EvaluationError) models.Verdict {
	name := rail.Name()
	policy := c.policyFor(name)

	verdict := models.Verdict{
		Error:    evalErr.Error(),
		Metadata: map[string]any{"timeout": evalErr.Timeout, "failure_policy": string(policy)},
	}

	if policy == models.PolicyOpen {
		verdict.Outcome = models.OutcomePass
		verdict.Warning = fmt.Sprintf("rail %s failed open: %v", name, evalErr.Err)
		c.logger.Warn().
			Err(evalErr).
			Str("stage", string(c.stage)).
			Str("rail", name).
			Bool("timeout", evalErr.Timeout).
			Msg("rail failed, continuing under fail-open policy")
		return verdict
	}

	verdict.Outcome = models.OutcomeBlock
	verdict.Score = 1.0
	verdict.Reason = fmt.Sprintf("rail %s failed closed: %v", name, evalErr.Err)
	c.logger.Error().
		Err(evalErr).
		Str("stage", string(c.stage)).
		Str("rail", name).
		Bool("timeout", evalErr.Timeout).
		Msg("rail failed, blocking under fail-closed policy")
	return verdict
}
