package batch

import (
	"errors"
	"fmt"
)

var ErrNoLabels = errors.New("no labelled records")

// Mismatch is a record whose decision differs from its label.
type Mismatch struct {
	LineNumber int    `json:"line"`
	EventID    string `json:"event_id,omitempty"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
}

type ValidationResult struct {
	TotalRecords   int        `json:"total_records"`
	AgreementCount int        `json:"agreement_count"`
	AgreementRate  float64    `json:"agreement_rate"`
	Threshold      float64    `json:"threshold"`
	Passed         bool       `json:"passed"`
	Mismatches     []Mismatch `json:"mismatches,omitempty"`
}

// ValidateDecisions compares guardrail decisions with the labels carried in
// the input. Records without a label or with an error are ignored.
func ValidateDecisions(records []OutputRecord, threshold float64) (*ValidationResult, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range [0, 1]", threshold)
	}

	result := &ValidationResult{Threshold: threshold}
	for _, r := range records {
		if r.ExpectedDecision == "" || r.Error != "" {
			continue
		}
		result.TotalRecords++
		if r.Result.Decision == r.ExpectedDecision {
			result.AgreementCount++
			continue
		}
		result.Mismatches = append(result.Mismatches, Mismatch{
			LineNumber: r.LineNumber,
			EventID:    r.EventID,
			Expected:   string(r.ExpectedDecision),
			Actual:     string(r.Result.Decision),
		})
	}

	if result.TotalRecords == 0 {
		return nil, ErrNoLabels
	}

	result.AgreementRate = float64(result.AgreementCount) / float64(result.TotalRecords)
	result.Passed = result.AgreementRate >= threshold
	return result, nil
}
