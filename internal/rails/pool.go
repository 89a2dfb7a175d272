package rails

import (
	"fmt"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/config"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/rs/zerolog"
)

// Pool builds rails from configuration
type Pool struct {
	adapter llm.Adapter
	logger  *zerolog.Logger
}

// NewPool creates a rail pool. adapter may be nil when no
// llm_classification rail is configured.
func NewPool(adapter llm.Adapter, logger *zerolog.Logger) *Pool {
	return &Pool{
		adapter: adapter,
		logger:  logger,
	}
}

// BuildFromConfig constructs every enabled rail, in definition order.
// Construction failures are returned as *config.ConfigurationError.
func (p *Pool) BuildFromConfig(cfg *config.RailsConfig) ([]Rail, error) {
	if cfg == nil {
		return nil, &config.ConfigurationError{Reason: "rails config is nil"}
	}

	var rails []Rail

	for _, railCfg := range cfg.Rails {
		if !railCfg.Enabled {
			p.logger.Info().
				Str("rail", railCfg.Name).
				Msg("rail disabled in config, skipping")
			continue
		}

		threshold, hasThreshold := cfg.Thresholds[railCfg.Name]
		rail, err := p.build(railCfg, threshold, hasThreshold, cfg.LLM)
		if err != nil {
			return nil, &config.ConfigurationError{
				Field:  "rails." + railCfg.Name,
				Reason: fmt.Sprintf("failed to create rail: %v", err),
			}
		}

		rails = append(rails, rail)

		p.logger.Info().
			Str("rail", railCfg.Name).
			Str("type", railCfg.Type).
			Str("action", railCfg.Action).
			Msg("rail created successfully")
	}

	if len(rails) == 0 {
		p.logger.Warn().Msg("no enabled rails found in config, all text will pass")
	}

	p.logger.Info().
		Int("total_rails", len(rails)).
		Msg("rail pool built successfully")

	return rails, nil
}

func (p *Pool) build(c config.RailConfiguration, threshold float64, hasThreshold bool, llmCfg config.LLMConfig) (Rail, error) {
	switch c.Type {
	case config.RailTypeSensitiveData:
		custom := make([]CustomPattern, 0, len(c.CustomPatterns))
		for _, cp := range c.CustomPatterns {
			custom = append(custom, CustomPattern{Name: cp.Name, Regex: cp.Regex})
		}
		return NewSensitiveDataRail(SensitiveDataConfig{
			Name:           c.Name,
			Action:         c.Action,
			Patterns:       c.Patterns,
			CustomPatterns: custom,
			Allowlist:      c.Allowlist,
		})

	case config.RailTypeToxicity:
		terms := make([]ToxicTerm, 0, len(c.Terms))
		for _, t := range c.Terms {
			terms = append(terms, ToxicTerm{Term: t.Term, Weight: t.Weight})
		}
		blockThreshold := c.BlockThreshold
		if hasThreshold {
			blockThreshold = threshold
		}
		return NewToxicityRail(ToxicityConfig{
			Name:           c.Name,
			Terms:          terms,
			BlockThreshold: blockThreshold,
			WarnThreshold:  c.WarnThreshold,
			Mask:           c.Mask,
		})

	case config.RailTypeClassification:
		topics := make([]Topic, 0, len(c.Topics))
		for _, t := range c.Topics {
			topics = append(topics, Topic{Name: t.Name, Keywords: t.Keywords})
		}
		classThreshold := c.Threshold
		if hasThreshold {
			classThreshold = threshold
		}
		return NewClassificationRail(ClassificationConfig{
			Name:          c.Name,
			Topics:        topics,
			BlockedTopics: c.BlockedTopics,
			WarnTopics:    c.WarnTopics,
			AllowedTopics: c.AllowedTopics,
			Threshold:     classThreshold,
		})

	case config.RailTypeLLMClassification:
		classThreshold := c.Threshold
		if hasThreshold {
			classThreshold = threshold
		}
		return NewLLMClassificationRail(LLMClassificationConfig{
			Name:              c.Name,
			Prompt:            c.Prompt,
			Categories:        c.Categories,
			BlockedCategories: c.BlockedCategories,
			WarnCategories:    c.WarnCategories,
			Threshold:         classThreshold,
			Invoke: llm.InvokeConfig{
				MaxTokens:   llmCfg.MaxTokens,
				Temperature: 0,
				Timeout:     llmCfg.Timeout(),
				Retry:       llmCfg.Retry,
			},
		}, p.adapter, p.logger)

	case config.RailTypeSecrets:
		return NewSecretsRail(SecretsConfig{Name: c.Name, Action: c.Action})

	case config.RailTypeLength:
		return NewLengthRail(LengthConfig{
			Name:         c.Name,
			MaxTokens:    c.MaxTokens,
			Action:       c.Action,
			TruncateMode: c.TruncateMode,
		})
	}

	return nil, fmt.Errorf("unknown rail type %q", c.Type)
}
