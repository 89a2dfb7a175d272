package stream

import (
	"context"
	"fmt"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	red "github.com/povarna/generative-ai-agents/guard-agent/internal/redis"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/stream/redis"
	"github.com/rs/zerolog"
)

// StreamConsumer pulls guard requests from a stream, runs them through the
// guard and publishes the results.
type StreamConsumer interface {
	// Setup creates the consumer group if it does not exist yet.
	Setup(ctx context.Context) error
	// Start blocks until ctx is done or reading fails.
	Start(ctx context.Context) error
	Stop() error
}

type StreamConfig struct {
	Provider    string // only redis for now
	RedisConfig *redis.RedisStreamConfig
}

// NewStreamConsumer connects to the configured provider. auditor may be nil.
func NewStreamConsumer(
	ctx context.Context,
	cfg *StreamConfig,
	guard guardrail.Guard,
	auditor redis.Auditor,
	logger *zerolog.Logger,
) (StreamConsumer, error) {

	// If provider is empty, fallback to the default configuration.
	provider := cfg.Provider
	if provider == "" {
		provider = "redis"
	}

	switch provider {
	case "redis":
		if cfg.RedisConfig == nil {
			return nil, fmt.Errorf("redis config required")
		}

		client, err := red.ConnectRedis(
			ctx,
			cfg.RedisConfig.RedisAddr,
			cfg.RedisConfig.RedisPassword,
			5,
			logger,
		)
		if err != nil {
			return nil, err
		}

		return redis.NewConsumer(client, cfg.RedisConfig, guard, auditor, logger), nil

	default:
		return nil, fmt.Errorf("unsupported stream provider: %s", cfg.Provider)
	}
}
