package batch

import (
	"context"
	"sync"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

type OutputRecord struct {
	LineNumber       int                    `json:"line"`
	EventID          string                 `json:"event_id,omitempty"`
	ExpectedDecision models.Decision        `json:"expected_decision,omitempty"`
	Result           models.GuardrailResult `json:"result"`
	Error            string                 `json:"error,omitempty"`
}

type Processor struct {
	guard   guardrail.Guard
	workers int
	logger  *zerolog.Logger
}

func NewProcessor(guard guardrail.Guard, workers int, logger *zerolog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		guard:   guard,
		workers: workers,
		logger:  logger,
	}
}

// Process runs every record through the guard on a pool of workers.
// Output order is not preserved. Records that failed to parse are passed
// through with their error.
func (p *Processor) Process(ctx context.Context, records []InputRecord) <-chan OutputRecord {
	jobs := make(chan InputRecord)
	results := make(chan OutputRecord, p.workers)

	var wg sync.WaitGroup
	for i := range p.workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for record := range jobs {
				results <- p.processOne(ctx, worker, record)
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, record := range records {
			select {
			case jobs <- record:
			case <-ctx.Done():
				p.logger.Warn().Msg("Batch cancelled, skipping remaining records")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Processor) processOne(ctx context.Context, worker int, record InputRecord) OutputRecord {
	out := OutputRecord{
		LineNumber:       record.LineNumber,
		EventID:          record.Request.EventID,
		ExpectedDecision: record.Request.ExpectedDecision,
	}

	if record.Error != nil {
		out.Error = record.Error.Error()
		return out
	}

	result, err := p.guard.ProcessRequest(ctx, record.Request.GuardRequest)
	out.Result = result
	if err != nil {
		out.Error = err.Error()
	}
	if out.EventID == "" {
		out.EventID = result.RequestID
	}

	p.logger.Debug().
		Int("worker", worker).
		Int("line", record.LineNumber).
		Str("decision", string(result.Decision)).
		Msg("Record processed")

	return out
}
