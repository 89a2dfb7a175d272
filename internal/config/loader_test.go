package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

const validConfig = `rails_order:
  input: [pii, toxicity]
  output: [toxicity]
failure_policy: closed
per_rail_timeout_ms: 500
thresholds:
  toxicity: 0.7
required_rails: [pii]
rejection_message: "Blocked by policy."
llm:
  max_tokens: 128
  temperature: 0.2
rails:
  - name: pii
    type: sensitive_data
    enabled: true
    action: block
    patterns: [ssn, email]
  - name: toxicity
    type: toxicity
    enabled: true
    failure_policy: open
    terms:
      - term: idiot
        weight: 0.6
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rails.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadRailsConfig_Success(t *testing.T) {
	t.Setenv("GUARD_CONFIG_PATH", writeConfig(t, validConfig))

	cfg, err := LoadRailsConfig()
	if err != nil {
		t.Fatalf("LoadRailsConfig() failed: %v", err)
	}

	if len(cfg.Rails) != 2 {
		t.Errorf("Expected 2 rails, got %d", len(cfg.Rails))
	}
	if got := strings.Join(cfg.RailsOrder.Input, ","); got != "pii,toxicity" {
		t.Errorf("Expected input order pii,toxicity, got %s", got)
	}
	if cfg.FailurePolicy != models.PolicyClosed {
		t.Errorf("Expected closed policy, got %s", cfg.FailurePolicy)
	}
	if cfg.PerRailTimeout().Milliseconds() != 500 {
		t.Errorf("Expected 500ms timeout, got %v", cfg.PerRailTimeout())
	}
	if cfg.Thresholds["toxicity"] != 0.7 {
		t.Errorf("Expected toxicity threshold 0.7, got %f", cfg.Thresholds["toxicity"])
	}
	if cfg.RejectionMessage != "Blocked by policy." {
		t.Errorf("Unexpected rejection message %q", cfg.RejectionMessage)
	}
	if cfg.LLM.MaxTokens != 128 {
		t.Errorf("Expected max_tokens=128, got %d", cfg.LLM.MaxTokens)
	}

	pii, ok := cfg.Rail("pii")
	if !ok {
		t.Fatal("Expected rail pii to be defined")
	}
	if pii.Action != "block" || len(pii.Patterns) != 2 {
		t.Errorf("Unexpected pii rail: %+v", pii)
	}

	overrides := cfg.PolicyOverrides()
	if overrides["toxicity"] != models.PolicyOpen {
		t.Errorf("Expected toxicity override open, got %q", overrides["toxicity"])
	}
	if _, ok := overrides["pii"]; ok {
		t.Error("Expected no override for pii")
	}
}

func TestLoadRailsConfig_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`rails:
  - name: pii
    type: sensitive_data
    enabled: true
rails_order:
  input: [pii]
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.FailurePolicy != models.PolicyClosed {
		t.Errorf("Expected default policy closed, got %s", cfg.FailurePolicy)
	}
	if cfg.PerRailTimeoutMs != 2000 {
		t.Errorf("Expected default timeout 2000, got %d", cfg.PerRailTimeoutMs)
	}
	if cfg.RejectionMessage != DefaultRejectionMessage {
		t.Errorf("Expected default rejection message, got %q", cfg.RejectionMessage)
	}
	if cfg.LLM.MaxTokens != 512 || cfg.LLM.TimeoutMs != 30000 {
		t.Errorf("Unexpected llm defaults: %+v", cfg.LLM)
	}
}

func TestLoadRailsConfig_FileNotFound(t *testing.T) {
	t.Setenv("GUARD_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := LoadRailsConfig(); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "invalid yaml",
			content: "rails: [",
			wantMsg: "invalid yaml",
		},
		{
			name: "unknown rail in order",
			content: `rails_order:
  input: [ghost]
`,
			wantMsg: `unknown rail "ghost"`,
		},
		{
			name: "duplicate rail in stage",
			content: `rails_order:
  input: [pii, pii]
rails:
  - {name: pii, type: sensitive_data, enabled: true}
`,
			wantMsg: `rail "pii" listed twice`,
		},
		{
			name: "duplicate definition",
			content: `rails:
  - {name: pii, type: sensitive_data, enabled: true}
  - {name: pii, type: toxicity, enabled: true}
`,
			wantMsg: `rail "pii" defined twice`,
		},
		{
			name: "unknown type",
			content: `rails:
  - {name: pii, type: magic, enabled: true}
`,
			wantMsg: `unknown rail type "magic"`,
		},
		{
			name:    "invalid policy",
			content: `failure_policy: maybe`,
			wantMsg: "must be open or closed",
		},
		{
			name: "invalid rail policy",
			content: `rails:
  - {name: pii, type: sensitive_data, enabled: true, failure_policy: sometimes}
`,
			wantMsg: "rails.pii.failure_policy",
		},
		{
			name: "threshold out of range",
			content: `thresholds: {pii: 1.5}
rails:
  - {name: pii, type: sensitive_data, enabled: true}
`,
			wantMsg: "out of range",
		},
		{
			name: "zero threshold",
			content: `thresholds: {toxicity: 0}
rails:
  - {name: toxicity, type: toxicity, enabled: true}
`,
			wantMsg: "thresholds.toxicity",
		},
		{
			name: "missing required rail",
			content: `required_rails: [pii]
`,
			wantMsg: `required rail "pii" is not defined`,
		},
		{
			name: "disabled required rail",
			content: `required_rails: [pii]
rails_order:
  input: [pii]
rails:
  - {name: pii, type: sensitive_data, enabled: false}
`,
			wantMsg: `required rail "pii" is disabled`,
		},
		{
			name: "required rail not ordered",
			content: `required_rails: [pii]
rails:
  - {name: pii, type: sensitive_data, enabled: true}
`,
			wantMsg: "not in rails_order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected configuration error, got nil")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected *ConfigurationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestLoadRailsConfigFile_Shipped(t *testing.T) {
	cfg, err := LoadRailsConfigFile(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("shipped config failed to load: %v", err)
	}
	if cfg.FailurePolicy != models.PolicyClosed {
		t.Errorf("FailurePolicy: got %q, want closed", cfg.FailurePolicy)
	}
	if len(cfg.RailsOrder.Input) == 0 || len(cfg.RailsOrder.Output) == 0 {
		t.Error("expected rails in both stages")
	}
	if overrides := cfg.PolicyOverrides(); overrides["semantic"] != models.PolicyOpen {
		t.Errorf("expected semantic to override policy to open, got %v", overrides)
	}
}
