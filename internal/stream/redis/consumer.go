package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	pendingBatchSize     = 10
	pendingRetryInterval = 5 * time.Second
)

// streamClient is the subset of *redis.Client the consumer uses.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Auditor interface {
	Record(ctx context.Context, source string, result models.GuardrailResult) error
}

type Consumer struct {
	client       streamClient
	stream       string
	resultStream string
	groupID      string
	consumerName string
	guard        guardrail.Guard
	auditor      Auditor
	logger       *zerolog.Logger

	retryInterval time.Duration
}

func NewConsumer(client streamClient, cfg *RedisStreamConfig, guard guardrail.Guard, auditor Auditor, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		client:       client,
		stream:       cfg.Stream,
		resultStream: cfg.ResultStream,
		groupID:      cfg.Group,
		consumerName: cfg.ConsumerName,
		guard:        guard,
		auditor:      auditor,
		logger:       logger,

		retryInterval: pendingRetryInterval,
	}
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.groupID, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.stream).
		Str("result_stream", c.resultStream).
		Str("group", c.groupID).
		Str("consumer", c.consumerName).
		Msg("Consumer started")

	// Messages this consumer read but never acked are retried before new ones.
	var retryAt time.Time
	failed, err := c.drainPending(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Msg("Failed to read pending messages")
		retryAt = time.Now().Add(c.retryInterval)
	} else if failed > 0 {
		retryAt = time.Now().Add(c.retryInterval)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !retryAt.IsZero() && !time.Now().Before(retryAt) {
			retryAt = time.Time{}
			failed, err := c.drainPending(ctx)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil || failed > 0 {
				retryAt = time.Now().Add(c.retryInterval)
			}
		}

		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupID,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// timeout, no message -> loop again
				continue
			}

			if ctx.Err() != nil {
				return ctx.Err() // context cancelled during block
			}

			c.logger.Error().Err(err).Msg("Failed to read from stream")
			continue
		}

		for _, s := range msgs {
			for _, msg := range s.Messages {
				if !c.process(ctx, msg) && retryAt.IsZero() {
					retryAt = time.Now().Add(c.retryInterval)
				}
			}
		}
	}
}

// drainPending walks this consumer's pending entries list once, oldest
// first, and returns how many entries are still unacked afterwards.
func (c *Consumer) drainPending(ctx context.Context) (int, error) {
	cursor := "0"
	failed := 0

	for {
		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupID,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, cursor},
			Count:    pendingBatchSize,
			Block:    -1,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return failed, nil
			}
			return failed, err
		}

		read := 0
		for _, s := range msgs {
			for _, msg := range s.Messages {
				read++
				cursor = msg.ID
				if !c.process(ctx, msg) {
					failed++
				}
			}
		}
		if read == 0 {
			if failed > 0 {
				c.logger.Warn().Int("pending", failed).Msg("Pending messages left for retry")
			}
			return failed, nil
		}
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
	}
}

func (c *Consumer) Stop() error {
	// No-op
	return nil
}

// process reports whether the message was acked. Unacked messages stay in
// the pending entries list and are picked up by drainPending.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) bool {
	c.logger.Info().Str("id", msg.ID).Msg("Message received")

	payload, ok := msg.Values["payload"].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("Missing payload field")
		return c.ack(ctx, msg.ID)
	}

	var guardRequest models.GuardRequest
	if err := json.Unmarshal([]byte(payload), &guardRequest); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to decode message")
		return c.ack(ctx, msg.ID) // bad message, ack to skip it
	}

	result, err := c.guard.ProcessRequest(ctx, guardRequest)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the message stays pending for the next start.
			return false
		}
		c.logger.Error().Err(err).Str("id", msg.ID).Str("request_id", result.RequestID).Msg("Guardrail run failed")
	}

	if c.auditor != nil {
		if err := c.auditor.Record(ctx, "stream", result); err != nil {
			c.logger.Warn().Err(err).Str("request_id", result.RequestID).Msg("Failed to store audit record")
		}
	}

	if err := c.publish(ctx, result); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to publish result")
		return false
	}

	c.logger.Info().
		Str("id", msg.ID).
		Str("request_id", result.RequestID).
		Str("decision", string(result.Decision)).
		Msg("Guardrail run complete")

	return c.ack(ctx, msg.ID)
}

func (c *Consumer) publish(ctx context.Context, result models.GuardrailResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.resultStream,
		Values: map[string]any{
			"request_id": result.RequestID,
			"decision":   string(result.Decision),
			"payload":    string(data),
		},
	}).Err()
}

func (c *Consumer) ack(ctx context.Context, msgID string) bool {
	if err := c.client.XAck(ctx, c.stream, c.groupID, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("Failed to ACK message")
		return false
	}
	return true
}
