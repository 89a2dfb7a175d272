package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/setup"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/setup/logger"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/stream"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/stream/redis"
)

func main() {
	// Load env
	envErr := godotenv.Load()

	cfg := setup.LoadConfig()
	log := logger.New(cfg.LogLevel, true)
	if envErr != nil {
		log.Warn().Msg("No .env file found")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := setup.Wire(ctx, cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	if deps.Watcher != nil {
		go func() {
			if err := deps.Watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	streamCfg := &stream.StreamConfig{
		Provider: os.Getenv("STREAM_PROVIDER"),
		RedisConfig: redis.NewRedisStreamConfig(
			os.Getenv("REDIS_ADDR"),
			os.Getenv("REDIS_PASSWORD"),
			os.Getenv("GUARD_REQUEST_STREAM"),
			os.Getenv("GUARD_RESULT_STREAM"),
			os.Getenv("GUARD_CONSUMER_GROUP"),
			os.Getenv("HOSTNAME"),
		),
	}

	var auditor redis.Auditor
	if deps.Auditor != nil {
		auditor = deps.Auditor
	}

	consumer, err := stream.NewStreamConsumer(ctx, streamCfg, deps.System, auditor, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream consumer")
	}

	// Setup consumer
	if err := consumer.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup consumer")
	}

	// Start consumer
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Consumer stopped with error")
		}
	}()

	// Wait for context to be done
	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	if err := consumer.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop consumer")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := deps.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to release dependencies")
	}

	log.Info().Msg("Guard Agent stopped")
}
