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

const (
	DefaultToxicityBlockThreshold = 0.8
	DefaultToxicityWarnThreshold  = 0.5
)

type ToxicTerm struct {
	Term   string
	Weight float64
}

type ToxicityConfig struct {
	Name           string
	Terms          []ToxicTerm
	BlockThreshold float64
	WarnThreshold  float64
	// Mask replaces matched terms with **** when the verdict is warn.
	Mask bool
}

type lexiconEntry struct {
	term   string
	weight float64
	regex  *regexp.Regexp
}

// ToxicityRail scores text against a weighted lexicon. Matched weights
// combine as 1 - Π(1 - w), so repeated distinct terms raise the score
// without exceeding 1.
type ToxicityRail struct {
	name           string
	lexicon        []lexiconEntry
	blockThreshold float64
	warnThreshold  float64
	mask           bool
}

func NewToxicityRail(cfg ToxicityConfig) (*ToxicityRail, error) {
	if len(cfg.Terms) == 0 {
		return nil, fmt.Errorf("toxicity rail %s: lexicon is empty", cfg.Name)
	}

	blockThreshold := cfg.BlockThreshold
	if blockThreshold == 0 {
		blockThreshold = DefaultToxicityBlockThreshold
	}
	warnThreshold := cfg.WarnThreshold
	if warnThreshold == 0 {
		warnThreshold = DefaultToxicityWarnThreshold
	}
	if warnThreshold > blockThreshold {
		warnThreshold = blockThreshold
	}

	rail := &ToxicityRail{
		name:           cfg.Name,
		blockThreshold: blockThreshold,
		warnThreshold:  warnThreshold,
		mask:           cfg.Mask,
	}

	for _, t := range cfg.Terms {
		term := strings.TrimSpace(t.Term)
		if term == "" {
			continue
		}
		if t.Weight <= 0 || t.Weight > 1 {
			return nil, fmt.Errorf("toxicity rail %s: weight %v for %q out of range (0, 1]", cfg.Name, t.Weight, term)
		}
		rail.lexicon = append(rail.lexicon, lexiconEntry{
			term:   strings.ToLower(term),
			weight: t.Weight,
			regex:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`),
		})
	}

	return rail, nil
}

func (r *ToxicityRail) Name() string {
	return r.name
}

func (r *ToxicityRail) Category() models.Category {
	return models.CategoryToxicity
}

func (r *ToxicityRail) Evaluate(ctx context.Context, text string) (models.Verdict, error) {
	now := time.Now()
	verdict := passVerdict(r.name, r.Category())

	var spans []models.Span
	var matched []string
	clean := 1.0
	for _, entry := range r.lexicon {
		locs := entry.regex.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		matched = append(matched, entry.term)
		clean *= 1 - entry.weight
		for _, loc := range locs {
			spans = append(spans, models.Span{Start: loc[0], End: loc[1], Label: entry.term, Score: entry.weight})
		}
	}

	score := 1 - clean
	verdict.Score = score
	verdict.Metadata = map[string]any{"matched_terms": len(matched)}

	switch {
	case score >= r.blockThreshold:
		verdict.Outcome = models.OutcomeBlock
		verdict.Reason = fmt.Sprintf("toxicity score %.2f at or above block threshold %.2f: %s", score, r.blockThreshold, strings.Join(matched, ", "))
	case score >= r.warnThreshold:
		verdict.Outcome = models.OutcomeWarn
		verdict.Reason = fmt.Sprintf("toxicity score %.2f at or above warn threshold %.2f: %s", score, r.warnThreshold, strings.Join(matched, ", "))
		if r.mask {
			spans = mergeSpans(spans)
			verdict.Text = replaceSpans(text, spans, func(models.Span) string { return "****" })
		}
	default:
		verdict.Reason = "no toxic content detected"
		if len(matched) > 0 {
			verdict.Reason = fmt.Sprintf("toxicity score %.2f below thresholds", score)
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	verdict.Spans = spans
	verdict.Duration = time.Since(now)
	return verdict, nil
}
