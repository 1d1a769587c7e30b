package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher queues notices on a Redis list for the delivery worker and
// announces them on a pub/sub channel for live listeners
type RedisPublisher struct {
	redis   *redis.Client
	queue   string
	channel string
}

// NewRedisPublisher creates a Redis-backed publisher
func NewRedisPublisher(client *redis.Client, queue, channel string) *RedisPublisher {
	if queue == "" {
		queue = "meetup:notices"
	}
	if channel == "" {
		channel = "meetup:notices:live"
	}
	return &RedisPublisher{
		redis:   client,
		queue:   queue,
		channel: channel,
	}
}

// Publish pushes the notice and announces it in one round trip
func (p *RedisPublisher) Publish(ctx context.Context, notice *Notice) error {
	if len(notice.Recipients) == 0 {
		return nil
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	pipe := p.redis.TxPipeline()
	pipe.RPush(ctx, p.queue, payload)
	pipe.Publish(ctx, p.channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	return nil
}

// Pending returns the number of queued notices
func (p *RedisPublisher) Pending(ctx context.Context) (int64, error) {
	n, err := p.redis.LLen(ctx, p.queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read notice queue: %w", err)
	}
	return n, nil
}
