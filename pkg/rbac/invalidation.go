package rbac

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// DefaultInvalidationChannel is the pub/sub channel carrying cache invalidations
const DefaultInvalidationChannel = "meetup:guard-invalidations"

// invalidateAll is the payload that drops every cached decision
const invalidateAll = "*"

// InvalidationBus tells every process holding a decision cache that grants
// changed
type InvalidationBus interface {
	// Publish announces that a user's grants or groups changed
	Publish(ctx context.Context, userID int64) error

	// PublishAll announces a change that may touch any user
	PublishAll(ctx context.Context) error
}

// RedisInvalidationBus broadcasts invalidations over Redis pub/sub
type RedisInvalidationBus struct {
	client  *redis.Client
	channel string
}

// NewRedisInvalidationBus creates a bus on the given channel
func NewRedisInvalidationBus(client *redis.Client, channel string) *RedisInvalidationBus {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &RedisInvalidationBus{client: client, channel: channel}
}

// Publish announces that a user's grants or groups changed
func (b *RedisInvalidationBus) Publish(ctx context.Context, userID int64) error {
	return b.publish(ctx, strconv.FormatInt(userID, 10))
}

// PublishAll announces a change that may touch any user
func (b *RedisInvalidationBus) PublishAll(ctx context.Context) error {
	return b.publish(ctx, invalidateAll)
}

func (b *RedisInvalidationBus) publish(ctx context.Context, payload string) error {
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish cache invalidation: %w", err)
	}
	return nil
}

// Listen subscribes checker to the channel. It returns once the
// subscription is live and keeps applying invalidations until ctx ends.
func (b *RedisInvalidationBus) Listen(ctx context.Context, checker *PermissionChecker) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				applyInvalidation(checker, msg.Payload)
			}
		}
	}()
	return nil
}

func applyInvalidation(checker *PermissionChecker, payload string) {
	if payload == invalidateAll {
		checker.dropAll()
		return
	}
	userID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		// Unknown payloads are treated as a full reset
		checker.dropAll()
		return
	}
	checker.dropUser(userID)
}
