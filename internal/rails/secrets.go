package rails

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/zricethezav/gitleaks/v8/detect"
)

type SecretsConfig struct {
	Name string
	// Action is block or redact. Defaults to block.
	Action string
}

// SecretsRail detects credentials and API keys with the gitleaks default
// rule set. The detector is not safe for concurrent use, so it is shared
// behind a mutex.
type SecretsRail struct {
	name   string
	action string

	mu       sync.Mutex
	detector *detect.Detector
}

func NewSecretsRail(cfg SecretsConfig) (*SecretsRail, error) {
	action := cfg.Action
	if action == "" {
		action = ActionBlock
	}
	if action != ActionBlock && action != ActionRedact {
		return nil, fmt.Errorf("secrets rail %s: unsupported action %q", cfg.Name, action)
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("secrets rail %s: failed to load gitleaks rules: %w", cfg.Name, err)
	}

	return &SecretsRail{
		name:     cfg.Name,
		action:   action,
		detector: detector,
	}, nil
}

func (r *SecretsRail) Name() string {
	return r.name
}

func (r *SecretsRail) Category() models.Category {
	return models.CategorySecrets
}

func (r *SecretsRail) Evaluate(ctx context.Context, text string) (models.Verdict, error) {
	now := time.Now()
	verdict := passVerdict(r.name, r.Category())

	if text == "" {
		verdict.Reason = "no secrets detected"
		return verdict, nil
	}

	r.mu.Lock()
	findings := r.detector.DetectString(text)
	r.mu.Unlock()

	var spans []models.Span
	var rules []string
	seenRule := make(map[string]bool)
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		if !seenRule[f.RuleID] {
			seenRule[f.RuleID] = true
			rules = append(rules, f.RuleID)
		}
		// Findings carry line/column positions; byte offsets are recovered
		// from the secret value itself.
		for offset := 0; ; {
			idx := strings.Index(text[offset:], f.Secret)
			if idx < 0 {
				break
			}
			start := offset + idx
			spans = append(spans, models.Span{Start: start, End: start + len(f.Secret), Label: f.RuleID, Score: 1.0})
			offset = start + len(f.Secret)
		}
	}
	spans = mergeSpans(spans)
	sort.Strings(rules)

	if len(spans) == 0 {
		verdict.Reason = "no secrets detected"
		verdict.Duration = time.Since(now)
		return verdict, nil
	}

	verdict.Spans = spans
	verdict.Score = 1.0
	verdict.Reason = fmt.Sprintf("secrets detected: %s", strings.Join(rules, ", "))
	verdict.Metadata = map[string]any{"rules": rules}

	if r.action == ActionRedact {
		verdict.Outcome = models.OutcomeWarn
		verdict.Text = replaceSpans(text, spans, func(s models.Span) string {
			return "[REDACTED:" + s.Label + "]"
		})
	} else {
		verdict.Outcome = models.OutcomeBlock
	}

	verdict.Duration = time.Since(now)
	return verdict, nil
}
