// Package redisqueue is the broker backend: tasks are appended to a Redis
// stream and executed by a consumer-group worker pool.
package redisqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

const (
	fieldID    = "id"
	fieldTask  = "task"
	fieldError = "error"
)

// StreamClient is the subset of go-redis stream commands we use.
// *redis.Client satisfies it.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
}

// Broker implements tasks.Broker.
type Broker struct {
	client StreamClient
	stream string
	logger *slog.Logger
}

func NewBroker(client StreamClient, stream string, logger *slog.Logger) *Broker {
	return &Broker{
		client: client,
		stream: stream,
		logger: logger.With("component", "RedisBroker", "stream", stream),
	}
}

// Enqueue appends the payload to the stream. It does not wait for execution.
func (b *Broker) Enqueue(ctx context.Context, p *tasks.Payload) error {
	body, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}
	jobID := uuid.NewString()

	entryID, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{fieldID: jobID, fieldTask: string(body)},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", b.stream, err)
	}
	b.logger.Debug("Task enqueued", "job_id", jobID, "entry_id", entryID, "action", p.Action)
	return nil
}

// DeadLetterStream names the stream that receives failed entries of stream.
func DeadLetterStream(stream string) string {
	return stream + ":dlq"
}
