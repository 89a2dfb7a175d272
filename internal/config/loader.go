package config

import (
	"fmt"
	"os"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath       = "configs/rails.yaml"
	DefaultRejectionMessage = "I'm sorry, but I can't help with that request."
)

// LoadRailsConfig reads the file named by GUARD_CONFIG_PATH, falling back
// to configs/rails.yaml.
func LoadRailsConfig() (*RailsConfig, error) {
	path := os.Getenv("GUARD_CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}
	return LoadRailsConfigFile(path)
}

func LoadRailsConfigFile(path string) (*RailsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rails config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*RailsConfig, error) {
	var cfg RailsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *RailsConfig) {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = models.PolicyClosed
	}
	if cfg.PerRailTimeoutMs == 0 {
		cfg.PerRailTimeoutMs = 2000
	}
	if cfg.RejectionMessage == "" {
		cfg.RejectionMessage = DefaultRejectionMessage
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}
	if cfg.LLM.TimeoutMs == 0 {
		cfg.LLM.TimeoutMs = 30000
	}
}

// Validate checks the rail definitions against the stage orders. Every
// problem is a *ConfigurationError.
func (c *RailsConfig) Validate() error {
	if !c.FailurePolicy.Valid() {
		return newConfigError("failure_policy", "must be open or closed, got %q", c.FailurePolicy)
	}
	if c.PerRailTimeoutMs < 0 {
		return newConfigError("per_rail_timeout_ms", "must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return newConfigError("llm.temperature", "%v out of range [0, 2]", c.LLM.Temperature)
	}

	rails := make(map[string]RailConfiguration, len(c.Rails))
	for i, r := range c.Rails {
		if r.Name == "" {
			return newConfigError(fmt.Sprintf("rails[%d].name", i), "must not be empty")
		}
		if _, dup := rails[r.Name]; dup {
			return newConfigError("rails", "rail %q defined twice", r.Name)
		}
		if !knownRailTypes[r.Type] {
			return newConfigError("rails."+r.Name+".type", "unknown rail type %q", r.Type)
		}
		if r.FailurePolicy != "" && !r.FailurePolicy.Valid() {
			return newConfigError("rails."+r.Name+".failure_policy", "must be open or closed, got %q", r.FailurePolicy)
		}
		rails[r.Name] = r
	}

	ordered := make(map[string]bool)
	for _, stage := range []struct {
		name  string
		order []string
	}{
		{"input", c.RailsOrder.Input},
		{"output", c.RailsOrder.Output},
	} {
		seen := make(map[string]bool, len(stage.order))
		for _, name := range stage.order {
			if _, ok := rails[name]; !ok {
				return newConfigError("rails_order."+stage.name, "unknown rail %q", name)
			}
			if seen[name] {
				return newConfigError("rails_order."+stage.name, "rail %q listed twice", name)
			}
			seen[name] = true
			ordered[name] = true
		}
	}

	for name, value := range c.Thresholds {
		if _, ok := rails[name]; !ok {
			return newConfigError("thresholds", "unknown rail %q", name)
		}
		// Rails read a zero threshold as unset, so it cannot be configured.
		if value <= 0 || value > 1 {
			return newConfigError("thresholds."+name, "%v out of range (0, 1]", value)
		}
	}

	for _, name := range c.RequiredRails {
		r, ok := rails[name]
		if !ok {
			return newConfigError("required_rails", "required rail %q is not defined", name)
		}
		if !r.Enabled {
			return newConfigError("required_rails", "required rail %q is disabled", name)
		}
		if !ordered[name] {
			return newConfigError("required_rails", "required rail %q is not in rails_order", name)
		}
	}

	return nil
}
