package rails

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Built-in sensitive data patterns, in detection order.
var builtinPatterns = []struct {
	name  string
	regex string
}{
	{"ssn", `\b\d{3}-\d{2}-\d{4}\b`},
	{"email", `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`},
	{"credit_card", `\b(?:\d[ -]?){12,18}\d\b`},
	{"phone", `(?:\+?1[-.\s]?)?\(?\b[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`},
	{"ip_address", `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`},
}

type namedPattern struct {
	name  string
	regex *regexp.Regexp
}

type SensitiveDataConfig struct {
	Name string
	// Action is block, redact or warn. Defaults to block.
	Action string
	// Patterns selects built-in patterns by name; empty enables all.
	Patterns       []string
	CustomPatterns []CustomPattern
	// Allowlist regexes; a match containing one of them is ignored.
	Allowlist []string
}

type CustomPattern struct {
	Name  string
	Regex string
}

// SensitiveDataRail detects PII such as SSNs, emails, phone numbers, card
// numbers and IP addresses.
type SensitiveDataRail struct {
	name      string
	action    string
	patterns  []namedPattern
	allowlist *regexp.Regexp
}

func NewSensitiveDataRail(cfg SensitiveDataConfig) (*SensitiveDataRail, error) {
	action := cfg.Action
	if action == "" {
		action = ActionBlock
	}
	if action != ActionBlock && action != ActionRedact && action != ActionWarn {
		return nil, fmt.Errorf("sensitive data rail %s: unsupported action %q", cfg.Name, action)
	}

	rail := &SensitiveDataRail{
		name:   cfg.Name,
		action: action,
	}

	enabled := make(map[string]bool, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		enabled[p] = true
	}
	known := make(map[string]bool, len(builtinPatterns))
	for _, p := range builtinPatterns {
		known[p.name] = true
		if len(enabled) == 0 || enabled[p.name] {
			rail.patterns = append(rail.patterns, namedPattern{name: p.name, regex: regexp.MustCompile(p.regex)})
		}
	}
	for p := range enabled {
		if !known[p] {
			return nil, fmt.Errorf("sensitive data rail %s: unknown pattern %q", cfg.Name, p)
		}
	}

	for _, custom := range cfg.CustomPatterns {
		compiled, err := regexp.Compile(custom.Regex)
		if err != nil {
			return nil, fmt.Errorf("sensitive data rail %s: invalid custom pattern %q: %w", cfg.Name, custom.Name, err)
		}
		rail.patterns = append(rail.patterns, namedPattern{name: custom.Name, regex: compiled})
	}

	if len(cfg.Allowlist) > 0 {
		compiled, err := regexp.Compile("(?:" + strings.Join(cfg.Allowlist, "|") + ")")
		if err != nil {
			return nil, fmt.Errorf("sensitive data rail %s: invalid allowlist: %w", cfg.Name, err)
		}
		rail.allowlist = compiled
	}

	return rail, nil
}

func (r *SensitiveDataRail) Name() string {
	return r.name
}

func (r *SensitiveDataRail) Category() models.Category {
	return models.CategorySensitiveData
}

func (r *SensitiveDataRail) Evaluate(ctx context.Context, text string) (models.Verdict, error) {
	now := time.Now()
	verdict := passVerdict(r.name, r.Category())

	spans := r.detect(text)
	if len(spans) == 0 {
		verdict.Reason = "no sensitive data detected"
		verdict.Duration = time.Since(now)
		return verdict, nil
	}

	labels := make([]string, 0, len(spans))
	seen := make(map[string]bool)
	for _, s := range spans {
		if !seen[s.Label] {
			seen[s.Label] = true
			labels = append(labels, s.Label)
		}
	}

	verdict.Spans = spans
	verdict.Score = 1.0
	verdict.Reason = fmt.Sprintf("sensitive data detected: %s", strings.Join(labels, ", "))
	verdict.Metadata = map[string]any{"entities": labels}

	switch r.action {
	case ActionBlock:
		verdict.Outcome = models.OutcomeBlock
	case ActionRedact:
		verdict.Outcome = models.OutcomeWarn
		verdict.Text = replaceSpans(text, spans, redactedLabel)
	default:
		verdict.Outcome = models.OutcomeWarn
	}

	verdict.Duration = time.Since(now)
	return verdict, nil
}

// detect returns the merged, start-ordered spans of every match that is
// not allowlisted.
func (r *SensitiveDataRail) detect(text string) []models.Span {
	var spans []models.Span
	for _, p := range r.patterns {
		for _, loc := range p.regex.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if r.allowlist != nil && r.allowlist.MatchString(match) {
				continue
			}
			if p.name == "credit_card" && !luhnValid(match) {
				continue
			}
			spans = append(spans, models.Span{Start: loc[0], End: loc[1], Label: p.name, Score: 1.0})
		}
	}
	return mergeSpans(spans)
}

// mergeSpans sorts spans by start and folds overlapping ones into the
// earliest, keeping its label.
func mergeSpans(spans []models.Span) []models.Span {
	if len(spans) < 2 {
		return spans
	}

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		if spans[i].End != spans[j].End {
			return spans[i].End > spans[j].End
		}
		return spans[i].Label < spans[j].Label
	})

	merged := []models.Span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start < last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// replaceSpans substitutes each span with placeholder(span). Spans must
// be sorted and non-overlapping.
func replaceSpans(text string, spans []models.Span, placeholder func(models.Span) string) string {
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.Start])
		b.WriteString(placeholder(s))
		prev = s.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

func redactedLabel(s models.Span) string {
	return "[REDACTED-" + strings.ToUpper(s.Label) + "]"
}

func luhnValid(number string) bool {
	sum := 0
	digits := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c == ' ' || c == '-' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		digits++
		double = !double
	}
	return digits >= 13 && sum%10 == 0
}
