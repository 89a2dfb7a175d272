package guardrail

import (
	"fmt"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/chain"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/config"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/rails"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type PipelineOptions struct {
	Tracer   trace.Tracer
	Recorder telemetry.Recorder
	Logger   *zerolog.Logger
}

// RailInfo describes a configured rail and the stages it runs in.
type RailInfo struct {
	Name     string          `json:"name"`
	Category models.Category `json:"category"`
	Stages   []models.Stage  `json:"stages"`
}

// Pipeline is an immutable snapshot of everything a request needs. A
// request keeps the snapshot it started with even if the system reloads.
type Pipeline struct {
	Input            *chain.RailChain
	Output           *chain.RailChain
	RejectionMessage string
	LLM              llm.InvokeConfig

	single map[string]*chain.RailChain
	info   []RailInfo
}

// NewPipeline arranges rails into the input and output chains named by
// cfg.RailsOrder. Rails that are disabled in cfg are left out of the
// chains.
func NewPipeline(cfg *config.RailsConfig, rs []rails.Rail, opts PipelineOptions) (*Pipeline, error) {
	if cfg == nil {
		return nil, &config.ConfigurationError{Reason: "rails config is nil"}
	}

	byName := make(map[string]rails.Rail, len(rs))
	for _, r := range rs {
		byName[r.Name()] = r
	}

	chainOpts := chain.Options{
		Policy:          cfg.FailurePolicy,
		Timeout:         cfg.PerRailTimeout(),
		PolicyOverrides: cfg.PolicyOverrides(),
		Tracer:          opts.Tracer,
		Recorder:        opts.Recorder,
		Logger:          opts.Logger,
	}

	p := &Pipeline{
		RejectionMessage: cfg.RejectionMessage,
		LLM: llm.InvokeConfig{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout(),
			Retry:       cfg.LLM.Retry,
		},
		single: make(map[string]*chain.RailChain, len(rs)),
	}

	stagesOf := make(map[string][]models.Stage)

	input, err := resolve(cfg, byName, cfg.RailsOrder.Input, "rails_order.input")
	if err != nil {
		return nil, err
	}
	output, err := resolve(cfg, byName, cfg.RailsOrder.Output, "rails_order.output")
	if err != nil {
		return nil, err
	}

	for _, r := range input {
		stagesOf[r.Name()] = append(stagesOf[r.Name()], models.StageInput)
	}
	for _, r := range output {
		stagesOf[r.Name()] = append(stagesOf[r.Name()], models.StageOutput)
	}

	p.Input = chain.New(models.StageInput, input, chainOpts)
	p.Output = chain.New(models.StageOutput, output, chainOpts)

	for _, r := range rs {
		stages := stagesOf[r.Name()]
		stage := models.StageInput
		if len(stages) > 0 {
			stage = stages[0]
		}
		p.single[r.Name()] = chain.New(stage, []rails.Rail{r}, chainOpts)
		p.info = append(p.info, RailInfo{Name: r.Name(), Category: r.Category(), Stages: stages})
	}

	return p, nil
}

func resolve(cfg *config.RailsConfig, byName map[string]rails.Rail, order []string, field string) ([]rails.Rail, error) {
	resolved := make([]rails.Rail, 0, len(order))
	for _, name := range order {
		if r, ok := byName[name]; ok {
			resolved = append(resolved, r)
			continue
		}
		if rc, ok := cfg.Rail(name); ok && !rc.Enabled {
			continue
		}
		return nil, &config.ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("rail %q has no built instance", name),
		}
	}
	return resolved, nil
}

// Rails lists every built rail in definition order.
func (p *Pipeline) Rails() []RailInfo {
	return append([]RailInfo(nil), p.info...)
}
