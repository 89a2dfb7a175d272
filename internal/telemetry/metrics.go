package telemetry

import (
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives pipeline measurements.
type Recorder interface {
	RailEvaluated(stage models.Stage, rail string, outcome models.Outcome, duration time.Duration)
	RailFailed(stage models.Stage, rail string, timeout bool)
	Decision(decision models.Decision, duration time.Duration)
	LLMCall(err error, duration time.Duration)
}

// Metrics is the Prometheus Recorder.
type Metrics struct {
	railEvaluations *prometheus.CounterVec
	railDuration    *prometheus.HistogramVec
	railFailures    *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	requestDuration prometheus.Histogram
	llmCalls        *prometheus.CounterVec
	llmDuration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		railEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guard",
				Subsystem: "rail",
				Name:      "evaluations_total",
				Help:      "Rail evaluations by stage, rail and outcome",
			},
			[]string{"stage", "rail", "outcome"},
		),
		railDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "guard",
				Subsystem: "rail",
				Name:      "duration_seconds",
				Help:      "Rail evaluation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "rail"},
		),
		railFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guard",
				Subsystem: "rail",
				Name:      "failures_total",
				Help:      "Rail evaluation errors, including timeouts",
			},
			[]string{"stage", "rail", "reason"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guard",
				Name:      "decisions_total",
				Help:      "Final guardrail decisions",
			},
			[]string{"decision"},
		),
		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "guard",
				Name:      "request_duration_seconds",
				Help:      "End-to-end guardrail request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guard",
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "LLM adapter calls by result",
			},
			[]string{"result"},
		),
		llmDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "guard",
				Subsystem: "llm",
				Name:      "duration_seconds",
				Help:      "LLM adapter latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}
}

func (m *Metrics) RailEvaluated(stage models.Stage, rail string, outcome models.Outcome, duration time.Duration) {
	m.railEvaluations.WithLabelValues(string(stage), rail, string(outcome)).Inc()
	m.railDuration.WithLabelValues(string(stage), rail).Observe(duration.Seconds())
}

func (m *Metrics) RailFailed(stage models.Stage, rail string, timeout bool) {
	reason := "error"
	if timeout {
		reason = "timeout"
	}
	m.railFailures.WithLabelValues(string(stage), rail, reason).Inc()
}

func (m *Metrics) Decision(decision models.Decision, duration time.Duration) {
	m.decisions.WithLabelValues(string(decision)).Inc()
	m.requestDuration.Observe(duration.Seconds())
}

func (m *Metrics) LLMCall(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.llmCalls.WithLabelValues(result).Inc()
	m.llmDuration.Observe(duration.Seconds())
}

type NopRecorder struct{}

func (NopRecorder) RailEvaluated(models.Stage, string, models.Outcome, time.Duration) {}
func (NopRecorder) RailFailed(models.Stage, string, bool)                            {}
func (NopRecorder) Decision(models.Decision, time.Duration)                          {}
func (NopRecorder) LLMCall(error, time.Duration)                                     {}
