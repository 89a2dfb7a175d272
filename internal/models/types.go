package models

import (
	"time"
)

type Stage string

const (
	StageInput  Stage = "input"
	StageOutput Stage = "output"
)

type Category string

const (
	CategoryToxicity          Category = "toxicity"
	CategorySensitiveData     Category = "sensitive_data"
	CategorySecrets           Category = "secrets"
	CategoryClassification    Category = "classification"
	CategoryLLMClassification Category = "llm_classification"
	CategoryLength            Category = "length"
)

type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeWarn  Outcome = "warn"
	OutcomeBlock Outcome = "block"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomePass || o == OutcomeWarn || o == OutcomeBlock
}

type FailurePolicy string

const (
	PolicyOpen   FailurePolicy = "open"
	PolicyClosed FailurePolicy = "closed"
)

func (p FailurePolicy) Valid() bool {
	return p == PolicyOpen || p == PolicyClosed
}

type Decision string

const (
	DecisionAllowed  Decision = "allowed"
	DecisionBlocked  Decision = "blocked"
	DecisionModified Decision = "modified"
	// DecisionFailed is not a content decision: the LLM or the caller failed.
	DecisionFailed Decision = "failed"
)

type State string

const (
	StateIdle               State = "idle"
	StateRunningInputRails  State = "running_input_rails"
	StateInvokingLLM        State = "invoking_llm"
	StateRunningOutputRails State = "running_output_rails"
	StateBlocked            State = "blocked"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

// Span is a detected region of the evaluated text, in byte offsets.
type Span struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// One rail's output
type Verdict struct {
	RailName string         `json:"rail"`
	Category Category       `json:"category"`
	Stage    Stage          `json:"stage"`
	Outcome  Outcome        `json:"outcome"`
	Score    float64        `json:"score"`
	Text     string         `json:"text,omitempty"`
	Spans    []Span         `json:"spans,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Warning  string         `json:"warning,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Modified reports whether the rail produced a transformed text.
func (v Verdict) Modified() bool {
	return v.Text != ""
}

// Output of one rail chain run
type ChainResult struct {
	Stage     Stage         `json:"stage"`
	Verdicts  []Verdict     `json:"verdicts"`
	InputText string        `json:"input_text"`
	Text      string        `json:"text"`
	Blocked   bool          `json:"blocked"`
	BlockedBy string        `json:"blocked_by,omitempty"`
	Modified  bool          `json:"modified"`
	Duration  time.Duration `json:"duration_ns"`
}

type TriggeredRail struct {
	Name    string  `json:"name"`
	Stage   Stage   `json:"stage"`
	Outcome Outcome `json:"outcome"`
	Score   float64 `json:"score"`
}

// Final output returned to the caller
type GuardrailResult struct {
	RequestID  string          `json:"request_id"`
	Decision   Decision        `json:"decision"`
	Text       string          `json:"text"`
	Input      *ChainResult    `json:"input,omitempty"`
	Output     *ChainResult    `json:"output,omitempty"`
	Triggered  []TriggeredRail `json:"triggered,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	LLMInvoked bool            `json:"llm_invoked"`
	States     []State         `json:"states"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
}

// Verdicts returns every verdict of the request, input stage first.
func (r GuardrailResult) Verdicts() []Verdict {
	var verdicts []Verdict
	if r.Input != nil {
		verdicts = append(verdicts, r.Input.Verdicts...)
	}
	if r.Output != nil {
		verdicts = append(verdicts, r.Output.Verdicts...)
	}
	return verdicts
}

func (r GuardrailResult) IsBlocked() bool {
	return r.Decision == DecisionBlocked
}

// FinalState is the state the run terminated in.
func (r GuardrailResult) FinalState() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// Input message

type GuardRequest struct {
	EventID  string            `json:"event_id"`
	Prompt   string            `json:"prompt"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type TextRequest struct {
	EventID string `json:"event_id"`
	Text    string `json:"text"`
}
