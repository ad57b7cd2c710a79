// Package messaging provides the Redis Streams queue between the intake
// pipeline and the response-generation workflow.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"intake_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamDraftJobs = "intake:draft"
)

// RedisProducer implements out.ResponseDispatcher using Redis Streams.
// Publishing decouples the sweep from webhook latency: the consumer drains
// the stream and delivers jobs at its own pace.
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// Dispatch publishes a draft job to the intake:draft stream.
func (p *RedisProducer) Dispatch(ctx context.Context, job *out.DraftJob) error {
	return p.publish(ctx, StreamDraftJobs, job)
}

// publish publishes a job to a stream.
func (p *RedisProducer) publish(ctx context.Context, stream string, job interface{}) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

// Ensure RedisProducer implements out.ResponseDispatcher
var _ out.ResponseDispatcher = (*RedisProducer)(nil)
