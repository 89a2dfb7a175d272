package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/aggregator"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/audit"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/config"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm/bedrock"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm/gpt"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/rails"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

type Config struct {
	AWSRegion       string
	ClaudeModelID   string
	OpenAIKey       string
	OpenAIModelID   string
	DefaultProvider string
	RailsConfigPath string
	WatchConfig     bool
	DatabaseURL     string
	OTLPEndpoint    string
	OTLPInsecure    bool
	ServiceName     string
	LogLevel        string
}

type Dependencies struct {
	System   *guardrail.System
	Auditor  *audit.Store
	Watcher  *config.Watcher
	Registry *prometheus.Registry
	Logger   *zerolog.Logger

	shutdownTracer func(context.Context) error
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:   getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:       getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:   getEnv("OPEN_AI_MODEL_ID", ""),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "bedrock"),
		RailsConfigPath: getEnv("GUARD_CONFIG_PATH", config.DefaultConfigPath),
		WatchConfig:     getEnvBool("GUARD_WATCH_CONFIG", true),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		ServiceName:     getEnv("OTEL_SERVICE_NAME", "guard-agent"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	tracer, shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	llmClient, err := createLLMClient(ctx, cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.DefaultProvider, err)
	}
	adapter := llm.NewAdapter(llmClient, logger)

	// Load rails configuration from YAML
	railsConfig, err := config.LoadRailsConfigFile(cfg.RailsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rails config: %w", err)
	}

	builder := &pipelineBuilder{
		pool:   rails.NewPool(adapter, logger),
		opts:   guardrail.PipelineOptions{Tracer: tracer, Recorder: metrics, Logger: logger},
		logger: logger,
	}

	pipeline, err := builder.build(railsConfig)
	if err != nil {
		return nil, err
	}

	system := guardrail.NewSystem(pipeline, adapter, aggregator.NewAggregator(logger), metrics, logger)

	deps := &Dependencies{
		System:         system,
		Registry:       registry,
		Logger:         logger,
		shutdownTracer: shutdownTracer,
	}

	if cfg.WatchConfig {
		watcher, err := config.NewWatcher(cfg.RailsConfigPath, func(c *config.RailsConfig) error {
			p, err := builder.build(c)
			if err != nil {
				return err
			}
			system.Reload(p)
			return nil
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Config hot reload disabled")
		} else {
			deps.Watcher = watcher
		}
	}

	if cfg.DatabaseURL != "" {
		store, err := audit.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		deps.Auditor = store
	}

	return deps, nil
}

// Close releases the audit store and flushes pending spans.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.Auditor != nil {
		d.Auditor.Close()
	}
	if d.shutdownTracer != nil {
		return d.shutdownTracer(ctx)
	}
	return nil
}

type pipelineBuilder struct {
	pool   *rails.Pool
	opts   guardrail.PipelineOptions
	logger *zerolog.Logger
}

func (b *pipelineBuilder) build(cfg *config.RailsConfig) (*guardrail.Pipeline, error) {
	rs, err := b.pool.BuildFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build rails from config: %w", err)
	}

	p, err := guardrail.NewPipeline(cfg, rs, b.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	b.logger.Info().
		Strs("input", cfg.RailsOrder.Input).
		Strs("output", cfg.RailsOrder.Output).
		Str("failure_policy", string(cfg.FailurePolicy)).
		Msg("Guardrail pipeline built")

	return p, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}

	return value
}

var ErrUnknownProvider = errors.New("unknown llm provider")

func createLLMClient(ctx context.Context, provider string, cfg *Config) (llm.LLMClient, error) {
	switch provider {
	case "bedrock", "":
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	case "openai":
		return gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
