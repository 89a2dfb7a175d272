package rails

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

const (
	TruncateStart  = "start"
	TruncateMiddle = "middle"
	TruncateEnd    = "end"
)

type LengthConfig struct {
	Name      string
	MaxTokens int
	// Action is block or truncate. Defaults to block.
	Action string
	// TruncateMode picks which part of the text is kept: start keeps the
	// beginning, end keeps the end, middle keeps both ends.
	TruncateMode string
}

// LengthRail limits text length in whitespace-separated tokens.
type LengthRail struct {
	name         string
	maxTokens    int
	action       string
	truncateMode string
}

func NewLengthRail(cfg LengthConfig) (*LengthRail, error) {
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("length rail %s: max_tokens must be positive", cfg.Name)
	}

	action := cfg.Action
	if action == "" {
		action = ActionBlock
	}
	if action != ActionBlock && action != ActionTruncate {
		return nil, fmt.Errorf("length rail %s: unsupported action %q", cfg.Name, action)
	}

	mode := cfg.TruncateMode
	if mode == "" {
		mode = TruncateStart
	}
	if mode != TruncateStart && mode != TruncateMiddle && mode != TruncateEnd {
		return nil, fmt.Errorf("length rail %s: unsupported truncate mode %q", cfg.Name, mode)
	}

	return &LengthRail{
		name:         cfg.Name,
		maxTokens:    cfg.MaxTokens,
		action:       action,
		truncateMode: mode,
	}, nil
}

func (r *LengthRail) Name() string {
	return r.name
}

func (r *LengthRail) Category() models.Category {
	return models.CategoryLength
}

func (r *LengthRail) Evaluate(ctx context.Context, text string) (models.Verdict, error) {
	now := time.Now()
	verdict := passVerdict(r.name, r.Category())

	tokens := strings.Fields(text)
	verdict.Metadata = map[string]any{"tokens": len(tokens), "max_tokens": r.maxTokens}

	if len(tokens) <= r.maxTokens {
		verdict.Score = float64(len(tokens)) / float64(r.maxTokens)
		verdict.Reason = "length is acceptable"
		verdict.Duration = time.Since(now)
		return verdict, nil
	}

	verdict.Score = 1.0
	verdict.Reason = fmt.Sprintf("text has %d tokens, limit is %d", len(tokens), r.maxTokens)

	if r.action == ActionTruncate {
		verdict.Outcome = models.OutcomeWarn
		verdict.Text = r.truncate(tokens)
	} else {
		verdict.Outcome = models.OutcomeBlock
	}

	verdict.Duration = time.Since(now)
	return verdict, nil
}

func (r *LengthRail) truncate(tokens []string) string {
	switch r.truncateMode {
	case TruncateEnd:
		return strings.Join(tokens[len(tokens)-r.maxTokens:], " ")
	case TruncateMiddle:
		head := (r.maxTokens + 1) / 2
		tail := r.maxTokens - head
		kept := append(append([]string{}, tokens[:head]...), "...")
		kept = append(kept, tokens[len(tokens)-tail:]...)
		return strings.Join(kept, " ")
	default:
		return strings.Join(tokens[:r.maxTokens], " ")
	}
}
