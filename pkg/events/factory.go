package events

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/config"
	"github.com/boreallogic/delphi-app/pkg/retry"
)

// NewFromConfig selects the publisher backend named in cfg.Events.Backend.
// Every backend except none is wrapped in a RetryingPublisher.
func NewFromConfig(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (Publisher, error) {
	var backend Publisher

	switch cfg.Events.Backend {
	case config.EventsBackendNone, "":
		logger.Info("Round event publishing disabled")
		return NoopPublisher{}, nil
	case config.EventsBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("events backend redis requires a redis client")
		}
		backend = NewRedisPublisher(redisClient, cfg.Events.ChannelPrefix)
	case config.EventsBackendKafka:
		kp, err := NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		backend = kp
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}

	logger.Info("Round event publishing enabled", zap.String("backend", cfg.Events.Backend))
	return NewRetryingPublisher(backend, retry.WithMaxRetries(cfg.Events.MaxRetries), logger), nil
}
