package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

const (
	FormatJSONL   = "jsonl"
	FormatSummary = "summary"
)

type Writer interface {
	Write(record OutputRecord) error
	Close() error
}

// NewWriter returns a JSONL writer that emits one line per record, or a
// summary writer that emits a single JSON document on Close.
func NewWriter(w io.Writer, format string, logger *zerolog.Logger) (Writer, error) {
	switch format {
	case FormatJSONL, "":
		return &jsonlWriter{enc: json.NewEncoder(w)}, nil
	case FormatSummary:
		return &summaryWriter{w: w, summary: NewSummary(), logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonlWriter struct {
	enc *json.Encoder
}

func (w *jsonlWriter) Write(record OutputRecord) error {
	return w.enc.Encode(record)
}

func (w *jsonlWriter) Close() error {
	return nil
}

type RailCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Summary struct {
	Total     int                     `json:"total"`
	Errors    int                     `json:"errors"`
	Decisions map[models.Decision]int `json:"decisions"`
	Triggered []RailCount             `json:"triggered"`

	railCounts map[string]int
}

func NewSummary() *Summary {
	return &Summary{
		Decisions:  make(map[models.Decision]int),
		railCounts: make(map[string]int),
	}
}

func (s *Summary) Add(record OutputRecord) {
	s.Total++
	if record.Error != "" {
		s.Errors++
	}
	if record.Result.Decision != "" {
		s.Decisions[record.Result.Decision]++
	}
	for _, t := range record.Result.Triggered {
		s.railCounts[t.Name]++
	}
}

// finalize sorts triggered rails by count, then name.
func (s *Summary) finalize() {
	s.Triggered = s.Triggered[:0]
	for name, count := range s.railCounts {
		s.Triggered = append(s.Triggered, RailCount{Name: name, Count: count})
	}
	sort.Slice(s.Triggered, func(i, j int) bool {
		if s.Triggered[i].Count != s.Triggered[j].Count {
			return s.Triggered[i].Count > s.Triggered[j].Count
		}
		return s.Triggered[i].Name < s.Triggered[j].Name
	})
}

type summaryWriter struct {
	w       io.Writer
	summary *Summary
	logger  *zerolog.Logger
}

func (w *summaryWriter) Write(record OutputRecord) error {
	w.summary.Add(record)
	return nil
}

func (w *summaryWriter) Close() error {
	w.summary.finalize()

	enc := json.NewEncoder(w.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w.summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	w.logger.Info().
		Int("total", w.summary.Total).
		Int("errors", w.summary.Errors).
		Msg("Summary written")
	return nil
}
