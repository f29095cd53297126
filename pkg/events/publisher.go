// Package events publishes study lifecycle events after a transition commits.
// Delivery is best-effort: the committed state is authoritative and a failed
// publish never undoes it.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/retry"
)

// Publisher delivers round events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event *models.RoundEvent) error
	Close() error
}

// Encode serializes an event into the JSON payload shared by every backend.
func Encode(event *models.RoundEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode round event: %w", err)
	}
	return data, nil
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, *models.RoundEvent) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }

// RetryingPublisher retries transient publish failures with backoff.
type RetryingPublisher struct {
	next   Publisher
	cfg    *retry.Config
	logger *zap.Logger
}

var _ Publisher = (*RetryingPublisher)(nil)

// NewRetryingPublisher wraps next so transient broker errors are retried.
func NewRetryingPublisher(next Publisher, cfg *retry.Config, logger *zap.Logger) *RetryingPublisher {
	if cfg == nil {
		cfg = retry.DefaultConfig()
	}
	return &RetryingPublisher{
		next:   next,
		cfg:    cfg,
		logger: logger.Named("event-publisher"),
	}
}

func (p *RetryingPublisher) Publish(ctx context.Context, event *models.RoundEvent) error {
	attempt := 0
	err := retry.DoIfRetryable(ctx, p.cfg, func() error {
		attempt++
		err := p.next.Publish(ctx, event)
		if err != nil && retry.IsRetryable(err) {
			p.logger.Debug("Transient publish failure",
				zap.String("event_type", string(event.Type)),
				zap.String("study_id", event.StudyID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s after %d attempt(s): %w", event.Type, attempt, err)
	}
	return nil
}

func (p *RetryingPublisher) Close() error {
	return p.next.Close()
}
