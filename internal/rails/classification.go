package rails

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

const DefaultClassificationThreshold = 0.25

type Topic struct {
	Name     string
	Keywords []string
}

type ClassificationConfig struct {
	Name          string
	Topics        []Topic
	BlockedTopics []string
	WarnTopics    []string
	// AllowedTopics, when set, blocks text that matches none of them.
	AllowedTopics []string
	Threshold     float64
}

type topicKeywords struct {
	name     string
	keywords []string
}

// ClassificationRail assigns text to keyword-defined topics. A topic's
// score is the share of its distinct keywords found in the text.
type ClassificationRail struct {
	name      string
	topics    []topicKeywords
	blocked   map[string]bool
	warn      map[string]bool
	allowed   map[string]bool
	threshold float64
}

func NewClassificationRail(cfg ClassificationConfig) (*ClassificationRail, error) {
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("classification rail %s: no topics configured", cfg.Name)
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultClassificationThreshold
	}

	rail := &ClassificationRail{
		name:      cfg.Name,
		threshold: threshold,
		blocked:   toSet(cfg.BlockedTopics),
		warn:      toSet(cfg.WarnTopics),
		allowed:   toSet(cfg.AllowedTopics),
	}

	known := make(map[string]bool, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		var keywords []string
		seen := make(map[string]bool)
		for _, kw := range topic.Keywords {
			normalized := strings.Join(tokenize(kw), " ")
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			keywords = append(keywords, normalized)
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("classification rail %s: topic %q has no usable keywords", cfg.Name, topic.Name)
		}
		known[topic.Name] = true
		rail.topics = append(rail.topics, topicKeywords{name: topic.Name, keywords: keywords})
	}

	for _, set := range []map[string]bool{rail.blocked, rail.warn, rail.allowed} {
		for name := range set {
			if !known[name] {
				return nil, fmt.Errorf("classification rail %s: unknown topic %q", cfg.Name, name)
			}
		}
	}

	return rail, nil
}

func (r *ClassificationRail) Name() string {
	return r.name
}

func (r *ClassificationRail) Category() models.Category {
	return models.CategoryClassification
}

func (r *ClassificationRail) Evaluate(ctx context.Context, text string) (models.Verdict, error) {
	now := time.Now()
	verdict := passVerdict(r.name, r.Category())

	// Padded so keywords only match on whole tokens.
	normalized := " " + strings.Join(tokenize(text), " ") + " "

	scores := make(map[string]float64, len(r.topics))
	best, bestScore := "", 0.0
	for _, topic := range r.topics {
		count := 0
		for _, kw := range topic.keywords {
			if strings.Contains(normalized, " "+kw+" ") {
				count++
			}
		}
		score := float64(count) / float64(len(topic.keywords))
		scores[topic.name] = score
		if score > bestScore {
			best, bestScore = topic.name, score
		}
	}

	verdict.Metadata = map[string]any{"topic": best, "topic_scores": scores}
	verdict.Score = bestScore

	if topic, score, ok := r.strongest(scores, r.blocked); ok {
		verdict.Outcome = models.OutcomeBlock
		verdict.Score = score
		verdict.Reason = fmt.Sprintf("text classified as blocked topic %q (score %.2f)", topic, score)
		verdict.Duration = time.Since(now)
		return verdict, nil
	}

	if len(r.allowed) > 0 && !r.anyAllowed(scores) {
		verdict.Outcome = models.OutcomeBlock
		verdict.Score = 1.0
		verdict.Reason = "text does not match any allowed topic"
		verdict.Duration = time.Since(now)
		return verdict, nil
	}

	if topic, score, ok := r.strongest(scores, r.warn); ok {
		verdict.Outcome = models.OutcomeWarn
		verdict.Score = score
		verdict.Reason = fmt.Sprintf("text classified as sensitive topic %q (score %.2f)", topic, score)
		verdict.Duration = time.Since(now)
		return verdict, nil
	}

	if best == "" {
		verdict.Reason = "no topic matched"
	} else {
		verdict.Reason = fmt.Sprintf("text classified as %q (score %.2f)", best, bestScore)
	}
	verdict.Duration = time.Since(now)
	return verdict, nil
}

// strongest returns the highest scoring topic of set at or above the
// threshold, in configuration order on ties.
func (r *ClassificationRail) strongest(scores map[string]float64, set map[string]bool) (string, float64, bool) {
	found, topScore := "", 0.0
	for _, topic := range r.topics {
		score := scores[topic.name]
		if set[topic.name] && score >= r.threshold && score > topScore {
			found, topScore = topic.name, score
		}
	}
	return found, topScore, found != ""
}

func (r *ClassificationRail) anyAllowed(scores map[string]float64) bool {
	for name := range r.allowed {
		if scores[name] > 0 {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
