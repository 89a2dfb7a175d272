package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

const DefaultLLMClassificationThreshold = 0.7

const defaultClassifierPrompt = `You are a content safety classifier for an AI assistant.
Classify the text below into exactly one category: {{.Categories}}.

Text:
"""
{{.Text}}
"""

Respond ONLY with JSON: {"category": "<category>", "score": <float 0.0-1.0>, "reason": "<short reason>"}`

type LLMClassificationConfig struct {
	Name string
	// Prompt is a text/template with {{.Text}} and {{.Categories}}.
	Prompt            string
	Categories        []string
	BlockedCategories []string
	WarnCategories    []string
	Threshold         float64
	Invoke            llm.InvokeConfig
}

type classifierPromptData struct {
	Text       string
	Categories string
}

type classifierResponse struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// LLMClassificationRail asks the LLM to classify the text semantically.
// Any LLM or parsing failure is reported as an evaluation error.
type LLMClassificationRail struct {
	name           string
	promptTemplate *template.Template
	categories     []string
	blocked        map[string]bool
	warn           map[string]bool
	threshold      float64
	invoke         llm.InvokeConfig
	adapter        llm.Adapter
	logger         *zerolog.Logger
}

func NewLLMClassificationRail(cfg LLMClassificationConfig, adapter llm.Adapter, logger *zerolog.Logger) (*LLMClassificationRail, error) {
	if adapter == nil {
		return nil, fmt.Errorf("llm classification rail %s: llm adapter is required", cfg.Name)
	}
	if len(cfg.BlockedCategories) == 0 && len(cfg.WarnCategories) == 0 {
		return nil, fmt.Errorf("llm classification rail %s: no blocked or warn categories", cfg.Name)
	}

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultClassifierPrompt
	}
	tmpl, err := template.New(cfg.Name).Option("missingkey=error").Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for rail %s: %w", cfg.Name, err)
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultLLMClassificationThreshold
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		categories = append(append([]string{"safe"}, cfg.BlockedCategories...), cfg.WarnCategories...)
	}

	return &LLMClassificationRail{
		name:           cfg.Name,
		promptTemplate: tmpl,
		categories:     categories,
		blocked:        categorySet(cfg.BlockedCategories),
		warn:           categorySet(cfg.WarnCategories),
		threshold:      threshold,
		invoke:         cfg.Invoke,
		adapter:        adapter,
		logger:         logger,
	}, nil
}

func (r *LLMClassificationRail) Name() string {
	return r.name
}

func (r *LLMClassificationRail) Category() models.Category {
	return models.CategoryLLMClassification
}

func (r *LLMClassificationRail) Evaluate(ctx context.Context, text string) (models.Verdict, error) {
	now := time.Now()
	verdict := passVerdict(r.name, r.Category())

	prompt, err := r.buildPrompt(text)
	if err != nil {
		return verdict, NewEvaluationError(r.name, err)
	}

	completion, err := r.adapter.Invoke(ctx, prompt, r.invoke)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("rail", r.name).
			Msg("LLM classification call failed")
		return verdict, NewEvaluationError(r.name, err)
	}

	var resp classifierResponse
	content := stripMarkdownCodeBlock(completion)
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		r.logger.Error().
			Err(err).
			Str("rail", r.name).
			Str("content", completion).
			Msg("failed to deserialize LLM response")
		return verdict, NewEvaluationError(r.name, fmt.Errorf("unparsable classifier response: %w", err))
	}

	if resp.Category == "" {
		return verdict, NewEvaluationError(r.name, fmt.Errorf("%w: classifier returned no category", ErrInvalidVerdict))
	}
	if resp.Score < 0.0 || resp.Score > 1.0 {
		return verdict, NewEvaluationError(r.name, fmt.Errorf("%w: score %f out of range [0.0, 1.0]", ErrInvalidVerdict, resp.Score))
	}

	category := normalizeCategory(resp.Category)
	verdict.Score = resp.Score
	verdict.Reason = resp.Reason
	verdict.Metadata = map[string]any{"category": category}

	switch {
	case r.blocked[category] && resp.Score >= r.threshold:
		verdict.Outcome = models.OutcomeBlock
	case (r.blocked[category] || r.warn[category]) && resp.Score >= r.threshold/2:
		verdict.Outcome = models.OutcomeWarn
	}

	verdict.Duration = time.Since(now)

	r.logger.Debug().
		Str("rail", r.name).
		Str("category", category).
		Float64("score", resp.Score).
		Str("outcome", string(verdict.Outcome)).
		Dur("duration", verdict.Duration).
		Msg("llm classification completed")

	return verdict, nil
}

// categorySet keys categories the same way model replies are normalized.
func categorySet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[normalizeCategory(v)] = true
	}
	return set
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func (r *LLMClassificationRail) buildPrompt(text string) (string, error) {
	var buf bytes.Buffer
	data := classifierPromptData{Text: text, Categories: strings.Join(r.categories, ", ")}
	if err := r.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

// stripMarkdownCodeBlock removes markdown code block formatting if present
func stripMarkdownCodeBlock(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		firstNewline := strings.Index(content, "\n")
		if firstNewline == -1 {
			return content
		}

		closingBackticks := strings.LastIndex(content, "```")
		if closingBackticks == -1 || closingBackticks <= firstNewline {
			return content
		}

		content = strings.TrimSpace(content[firstNewline+1 : closingBackticks])
	}

	return content
}
