package rails

import (
	"context"
	"strings"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

//go:generate mockgen -source=rail.go -destination=mocks/mock_rail.go -package=mocks

// Rail is a single content check. Implementations are immutable after
// construction and safe for concurrent use. Evaluate never modifies its
// input; a transformed text is returned in Verdict.Text.
type Rail interface {
	Name() string
	Category() models.Category
	Evaluate(ctx context.Context, text string) (models.Verdict, error)
}

// Actions a rail can take when it detects something.
const (
	ActionBlock    = "block"
	ActionWarn     = "warn"
	ActionRedact   = "redact"
	ActionTruncate = "truncate"
)

func passVerdict(name string, category models.Category) models.Verdict {
	return models.Verdict{
		RailName: name,
		Category: category,
		Outcome:  models.OutcomePass,
	}
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"of": true, "at": true, "by": true, "for": true, "with": true,
	"about": true, "against": true, "between": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"to": true, "from": true, "in": true, "on": true,
}

// tokenize lowercases s, strips punctuation and drops stop words and
// single-letter tokens.
func tokenize(s string) []string {
	s = strings.ToLower(s)
	s = removePunctuation(s)

	tokens := []string{}
	for word := range strings.FieldsSeq(s) {
		if !stopWords[word] && len(word) > 1 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

func removePunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(".,!?;:()[]{}\"'", r) {
			return -1
		}
		return r
	}, s)
}
