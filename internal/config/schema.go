package config

import (
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Rail types accepted in the `type` field of a rail definition.
const (
	RailTypeSensitiveData     = "sensitive_data"
	RailTypeToxicity          = "toxicity"
	RailTypeClassification    = "classification"
	RailTypeLLMClassification = "llm_classification"
	RailTypeSecrets           = "secrets"
	RailTypeLength            = "length"
)

var knownRailTypes = map[string]bool{
	RailTypeSensitiveData:     true,
	RailTypeToxicity:          true,
	RailTypeClassification:    true,
	RailTypeLLMClassification: true,
	RailTypeSecrets:           true,
	RailTypeLength:            true,
}

// RailsConfig is the complete guardrail configuration loaded from YAML.
type RailsConfig struct {
	RailsOrder       RailsOrder           `yaml:"rails_order"`
	FailurePolicy    models.FailurePolicy `yaml:"failure_policy"`
	PerRailTimeoutMs int                  `yaml:"per_rail_timeout_ms"`
	Thresholds       map[string]float64   `yaml:"thresholds"`
	RequiredRails    []string             `yaml:"required_rails"`
	RejectionMessage string               `yaml:"rejection_message"`
	LLM              LLMConfig            `yaml:"llm"`
	Rails            []RailConfiguration  `yaml:"rails"`
}

// RailsOrder lists rail names per stage, in execution order.
type RailsOrder struct {
	Input  []string `yaml:"input"`
	Output []string `yaml:"output"`
}

// LLMConfig holds the parameters passed to the LLM adapter on every call.
type LLMConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMs   int     `yaml:"timeout_ms"`
	Retry       bool    `yaml:"retry"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RailConfiguration defines a single rail. Only the parameters of the
// rail's type are read; the rest are ignored.
type RailConfiguration struct {
	Name          string               `yaml:"name"`
	Type          string               `yaml:"type"`
	Enabled       bool                 `yaml:"enabled"`
	Description   string               `yaml:"description"`
	FailurePolicy models.FailurePolicy `yaml:"failure_policy"`

	// block | warn | redact | truncate, depending on the type
	Action string `yaml:"action"`

	// sensitive_data
	Patterns       []string        `yaml:"patterns"`
	CustomPatterns []PatternConfig `yaml:"custom_patterns"`
	Allowlist      []string        `yaml:"allowlist"`

	// toxicity
	Terms          []TermConfig `yaml:"terms"`
	BlockThreshold float64      `yaml:"block_threshold"`
	WarnThreshold  float64      `yaml:"warn_threshold"`
	Mask           bool         `yaml:"mask"`

	// classification and llm_classification
	Topics            []TopicConfig `yaml:"topics"`
	BlockedTopics     []string      `yaml:"blocked_topics"`
	WarnTopics        []string      `yaml:"warn_topics"`
	AllowedTopics     []string      `yaml:"allowed_topics"`
	Threshold         float64       `yaml:"threshold"`
	Prompt            string        `yaml:"prompt"`
	Categories        []string      `yaml:"categories"`
	BlockedCategories []string      `yaml:"blocked_categories"`
	WarnCategories    []string      `yaml:"warn_categories"`

	// length
	MaxTokens    int    `yaml:"max_tokens"`
	TruncateMode string `yaml:"truncate_mode"`
}

type PatternConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

type TermConfig struct {
	Term   string  `yaml:"term"`
	Weight float64 `yaml:"weight"`
}

type TopicConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// PerRailTimeout returns the per-rail deadline, zero meaning no deadline.
func (c *RailsConfig) PerRailTimeout() time.Duration {
	return time.Duration(c.PerRailTimeoutMs) * time.Millisecond
}

// Rail returns the definition for name.
func (c *RailsConfig) Rail(name string) (RailConfiguration, bool) {
	for _, r := range c.Rails {
		if r.Name == name {
			return r, true
		}
	}
	return RailConfiguration{}, false
}

// PolicyOverrides returns the per-rail failure policies that differ from
// the global one.
func (c *RailsConfig) PolicyOverrides() map[string]models.FailurePolicy {
	overrides := make(map[string]models.FailurePolicy)
	for _, r := range c.Rails {
		if r.FailurePolicy != "" && r.FailurePolicy != c.FailurePolicy {
			overrides[r.Name] = r.FailurePolicy
		}
	}
	return overrides
}
