package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/redis/go-redis/v9"
)

type publisher interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Producer appends guard requests to the request stream.
type Producer struct {
	client publisher
	stream string
}

func NewProducer(client publisher, stream string) *Producer {
	if stream == "" {
		stream = DefaultRequestStream
	}
	return &Producer{
		client: client,
		stream: stream,
	}
}

// Publish returns the stream entry id.
func (p *Producer) Publish(ctx context.Context, req models.GuardRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", p.stream, err)
	}
	return id, nil
}
