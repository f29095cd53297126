package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/boreallogic/delphi-app/pkg/models"
)

// DefaultChannelPrefix is prepended to the study ID to form the pub/sub channel.
const DefaultChannelPrefix = "delphi:rounds"

// redisPubSub is the part of the go-redis client the publisher needs.
type redisPubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events with PUBLISH on a per-study channel.
type RedisPublisher struct {
	client redisPubSub
	prefix string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on top of an existing client.
// The client is owned by the caller and is not closed by Close.
func NewRedisPublisher(client redisPubSub, channelPrefix string) *RedisPublisher {
	if channelPrefix == "" {
		channelPrefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: channelPrefix}
}

// Channel returns the channel events for the given study are published on.
func (p *RedisPublisher) Channel(event *models.RoundEvent) string {
	return fmt.Sprintf("%s:%s", p.prefix, event.StudyID)
}

func (p *RedisPublisher) Publish(ctx context.Context, event *models.RoundEvent) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, p.Channel(event), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return nil }
